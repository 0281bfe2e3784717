/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package writer

import (
	"context"
	"sync"
	"time"

	"github.com/gravwell/structuredsyslogd/internal/store"
)

// fakeStore is an in-memory store.Store used to test the table writer
// without a live cluster.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string][]store.Row
	ttls map[string][]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows: make(map[string][]store.Row),
		ttls: make(map[string][]time.Duration),
	}
}

func (f *fakeStore) SetKeyspace(ctx context.Context, keyspace string, rf int) error { return nil }
func (f *fakeStore) CreateTable(ctx context.Context, ddl string) error             { return nil }
func (f *fakeStore) TableExists(ctx context.Context, table string) (bool, error)   { return true, nil }

func (f *fakeStore) InsertRow(ctx context.Context, table string, row store.Row, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[table] = append(f.rows[table], row)
	f.ttls[table] = append(f.ttls[table], ttl)
	return nil
}

func (f *fakeStore) GetRow(ctx context.Context, table string, key store.Row, columns []string) (store.Row, error) {
	return nil, nil
}

func (f *fakeStore) QueueDepth() uint64 { return 0 }
func (f *fakeStore) Close()             {}

func (f *fakeStore) rowCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[table])
}
