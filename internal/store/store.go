/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package store is the wide-column store sink: schema management and row
// writes against a Cassandra-compatible cluster (spec.md §4.4, §6). The
// table writer talks to this package's Store interface only; gocql is an
// implementation detail.
package store

import (
	"context"
	"time"
)

// Row maps column names to values for one write; it carries no column order.
type Row map[string]interface{}

// Store is the wide-column sink the table writer and initializer depend
// on. Everything here is a thin, typed wrapper over CQL statements; the
// keyspace, insert, select and table-probe CQL lives in cql.go next to the
// Store implementation that issues it, while CreateTable runs DDL text
// supplied by the caller.
type Store interface {
	SetKeyspace(ctx context.Context, keyspace string, replicationFactor int) error
	CreateTable(ctx context.Context, ddl string) error
	TableExists(ctx context.Context, table string) (bool, error)
	InsertRow(ctx context.Context, table string, row Row, ttl time.Duration) error
	GetRow(ctx context.Context, table string, key Row, columns []string) (Row, error)

	// QueueDepth reports the number of writes currently buffered ahead of
	// the store connection, one of the admission controller's three
	// signals (spec.md §4.5).
	QueueDepth() uint64

	Close()
}
