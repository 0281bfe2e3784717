/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gocql/gocql"
)

// CQLStore is the concrete Store backed by a Cassandra-compatible cluster,
// written at LOCAL_ONE consistency per spec.md §6.
type CQLStore struct {
	session  *gocql.Session
	inflight atomic.Int64
}

// CQLConfig configures the cluster connection.
type CQLConfig struct {
	Hosts          []string
	User, Password string
	UseSSL         bool
	SSLCACert      string
	ConnectTimeout time.Duration
}

func Dial(cfg CQLConfig) (*CQLStore, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Consistency = gocql.LocalOne
	cluster.Timeout = cfg.ConnectTimeout
	cluster.ConnectTimeout = cfg.ConnectTimeout

	if cfg.User != `` {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.User,
			Password: cfg.Password,
		}
	}
	if cfg.UseSSL {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath: cfg.SSLCACert,
			Config: &tls.Config{},
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}
	return &CQLStore{session: session}, nil
}

func (c *CQLStore) Close() {
	c.session.Close()
}

func (c *CQLStore) QueueDepth() uint64 {
	v := c.inflight.Load()
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func (c *CQLStore) SetKeyspace(ctx context.Context, keyspace string, replicationFactor int) error {
	stmt := fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
		keyspace, replicationFactor)
	if err := c.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
		return err
	}
	return c.session.Query(fmt.Sprintf(`USE %s`, keyspace)).WithContext(ctx).Exec()
}

func (c *CQLStore) CreateTable(ctx context.Context, ddl string) error {
	return c.session.Query(ddl).WithContext(ctx).Exec()
}

func (c *CQLStore) TableExists(ctx context.Context, table string) (bool, error) {
	var name string
	err := c.session.Query(
		`SELECT table_name FROM system_schema.tables WHERE keyspace_name = ? AND table_name = ?`,
		c.session.Keyspace(), strings.ToLower(table),
	).WithContext(ctx).Scan(&name)
	if err == gocql.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (c *CQLStore) InsertRow(ctx context.Context, table string, row Row, ttl time.Duration) error {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	cols := make([]string, 0, len(row))
	placeholders := make([]string, 0, len(row))
	args := make([]interface{}, 0, len(row))
	for k, v := range row {
		cols = append(cols, k)
		placeholders = append(placeholders, "?")
		args = append(args, v)
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if ttl > 0 {
		stmt += fmt.Sprintf(` USING TTL %d`, int(ttl.Seconds()))
	}
	return c.session.Query(stmt, args...).WithContext(ctx).Exec()
}

func (c *CQLStore) GetRow(ctx context.Context, table string, key Row, columns []string) (Row, error) {
	whereCols := make([]string, 0, len(key))
	args := make([]interface{}, 0, len(key))
	for k, v := range key {
		whereCols = append(whereCols, k+" = ?")
		args = append(args, v)
	}
	colList := "*"
	if len(columns) > 0 {
		colList = strings.Join(columns, ", ")
	}
	stmt := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, colList, table, strings.Join(whereCols, " AND "))

	out := make(Row)
	if err := c.session.Query(stmt, args...).WithContext(ctx).MapScan(out); err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}
