/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package initializer drives the collector's startup state machine
// (spec.md §4.6): acquiring a cluster-wide lock so only one peer probes
// and creates schema, then bootstrapping SYSTEM_OBJECT_TABLE.
package initializer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"

	log "github.com/gravwell/structuredsyslogd/internal/applog"
	"github.com/gravwell/structuredsyslogd/internal/config"
	"github.com/gravwell/structuredsyslogd/internal/store"
)

type State int

const (
	StateIdle State = iota
	StateLockAcquiring
	StateSchemaProbing
	StateSchemaCreating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLockAcquiring:
		return "LOCK_ACQUIRING"
	case StateSchemaProbing:
		return "SCHEMA_PROBING"
	case StateSchemaCreating:
		return "SCHEMA_CREATING"
	case StateReady:
		return "READY"
	default:
		return "IDLE"
	}
}

// Initializer runs once at startup. Its lock, once acquired, is released
// (RAII-style) as soon as the scoped initialization work completes or
// fails, regardless of which branch returns.
type Initializer struct {
	cfg   *config.CollectorConfig
	store store.Store
	log   *log.Logger

	zkConn *zk.Conn
	state  State
}

func New(cfg *config.CollectorConfig, st store.Store, logger *log.Logger) *Initializer {
	return &Initializer{cfg: cfg, store: st, log: logger}
}

func (i *Initializer) State() State { return i.state }

// Run drives IDLE -> LOCK_ACQUIRING -> SCHEMA_PROBING -> SCHEMA_CREATING ->
// READY. When Coordinate_Init is false the lock step is skipped entirely.
func (i *Initializer) Run(ctx context.Context) error {
	i.state = StateIdle

	if i.cfg.Coordinate_Init {
		release, err := i.acquireLock(ctx)
		if err != nil {
			return fmt.Errorf("lock acquisition: %w", err)
		}
		defer release()
	}

	i.state = StateSchemaProbing
	missing, err := i.probeSchema(ctx)
	if err != nil {
		return fmt.Errorf("schema probe: %w", err)
	}

	if len(missing) > 0 {
		i.state = StateSchemaCreating
		if err := i.createSchema(ctx, missing); err != nil {
			return fmt.Errorf("schema creation: %w", err)
		}
		if err := i.bootstrapSystemObjectTable(ctx); err != nil {
			return fmt.Errorf("system object table bootstrap: %w", err)
		}
	}

	i.state = StateReady
	return nil
}

// acquireLock blocks until the distributed init lock is held, returning a
// release function. This mirrors a scoped guard: the caller must defer the
// returned function exactly once.
func (i *Initializer) acquireLock(ctx context.Context) (release func(), err error) {
	i.state = StateLockAcquiring

	conn, events, err := zk.Connect(i.cfg.Zookeeper_Servers, 10*time.Second)
	if err != nil {
		return nil, err
	}
	i.zkConn = conn

	go func() {
		for range events {
			// connection/session events are drained and discarded; a lost
			// session surfaces as a failed lock operation instead.
		}
	}()

	lock := zk.NewLock(conn, i.cfg.Lock_Node_Path, zk.WorldACL(zk.PermAll))
	if err = lock.Lock(); err != nil {
		conn.Close()
		return nil, err
	}

	return func() {
		lock.Unlock()
		conn.Close()
	}, nil
}

func (i *Initializer) probeSchema(ctx context.Context) ([]string, error) {
	var missing []string
	for _, ddl := range tableDefinitions(i.cfg) {
		exists, err := i.store.TableExists(ctx, ddl.name)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing = append(missing, ddl.name)
		}
	}
	return missing, nil
}

func (i *Initializer) createSchema(ctx context.Context, missing []string) error {
	wanted := make(map[string]struct{}, len(missing))
	for _, m := range missing {
		wanted[m] = struct{}{}
	}
	for _, ddl := range tableDefinitions(i.cfg) {
		if _, ok := wanted[ddl.name]; !ok {
			continue
		}
		if err := i.store.CreateTable(ctx, ddl.cql); err != nil {
			return err
		}
		if i.log != nil {
			i.log.Info("created table", log.KV("table", ddl.name))
		}
	}
	return nil
}
