/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package initializer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravwell/structuredsyslogd/internal/config"
	"github.com/gravwell/structuredsyslogd/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	exists  map[string]bool
	created []string
	rows    []store.Row
}

func newFakeStore() *fakeStore {
	return &fakeStore{exists: make(map[string]bool)}
}

func (f *fakeStore) SetKeyspace(ctx context.Context, keyspace string, rf int) error { return nil }

func (f *fakeStore) CreateTable(ctx context.Context, ddl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, ddl)
	return nil
}

func (f *fakeStore) TableExists(ctx context.Context, table string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists[table], nil
}

func (f *fakeStore) InsertRow(ctx context.Context, table string, row store.Row, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeStore) GetRow(ctx context.Context, table string, key store.Row, columns []string) (store.Row, error) {
	return nil, nil
}

func (f *fakeStore) QueueDepth() uint64 { return 0 }
func (f *fakeStore) Close()             {}

func cfgFixture() *config.CollectorConfig {
	return &config.CollectorConfig{
		Cassandra_Servers: []string{"127.0.0.1:9042"},
		Compaction_Strategy: "SizeTieredCompactionStrategy",
		TTL: config.TTLConfig{
			Flow_Ttl: 48, Stats_Ttl: 96, Config_Audit_Ttl: 2160, Global_Ttl: 48,
		},
	}
}

func TestRunCreatesMissingSchemaAndBootstraps(t *testing.T) {
	fs := newFakeStore()
	cfg := cfgFixture()
	ini := New(cfg, fs, nil)

	require.NoError(t, ini.Run(context.Background()))
	require.Equal(t, StateReady, ini.State())
	require.NotEmpty(t, fs.created)

	var sawTimestamps, sawTTL bool
	for _, row := range fs.rows {
		if row["name"] == "timestamps" {
			sawTimestamps = true
		}
		if row["name"] == "ttl" {
			sawTTL = true
		}
		require.Equal(t, "collector", row["key"])
	}
	require.True(t, sawTimestamps)
	require.True(t, sawTTL)
}

func TestRunSkipsCreationWhenSchemaPresent(t *testing.T) {
	fs := newFakeStore()
	for _, ddl := range tableDefinitions(cfgFixture()) {
		fs.exists[ddl.name] = true
	}
	ini := New(cfgFixture(), fs, nil)

	require.NoError(t, ini.Run(context.Background()))
	require.Empty(t, fs.created)
	require.Empty(t, fs.rows)
}

func TestFlowTableUsesFlowCompactionOverride(t *testing.T) {
	cfg := cfgFixture()
	cfg.Flow_Table_Compaction = "LeveledCompactionStrategy"

	defs := tableDefinitions(cfg)
	for _, d := range defs {
		if d.name == "message_table" {
			require.Contains(t, d.cql, "LeveledCompactionStrategy")
			return
		}
	}
	t.Fatal("message_table definition not found")
}
