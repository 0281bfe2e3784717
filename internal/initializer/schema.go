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
	"fmt"
	"time"

	"github.com/gravwell/structuredsyslogd/internal/config"
	"github.com/gravwell/structuredsyslogd/internal/store"
)

type tableDDL struct {
	name string
	cql  string
}

const systemObjectTable = "system_object_table"

// tableDefinitions returns the DDL for every table this collector owns.
// The flow table (message_table's flow-tagged rows live alongside
// everything else, but its compaction strategy is configurable
// independently per spec.md §4.4/§6) gets Flow_Table_Compaction instead of
// the general Compaction_Strategy.
func tableDefinitions(cfg *config.CollectorConfig) []tableDDL {
	general := compactionClause(cfg.Compaction_Strategy)
	flow := compactionClause(firstNonEmpty(cfg.Flow_Table_Compaction, cfg.Compaction_Strategy))

	return []tableDDL{
		{
			name: "message_table",
			cql: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS message_table (
				t2 bigint, t1 bigint, tag text, hostname text, uuid text,
				PRIMARY KEY ((t2, tag), t1, uuid)
			) %s`, flow),
		},
		{
			name: "object_value_table",
			cql: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS object_value_table (
				object_type text, object_index text, t2 bigint, t1 bigint, uuid text,
				PRIMARY KEY ((object_type, object_index), t2, t1, uuid)
			) %s`, general),
		},
		{
			name: "field_names_table",
			cql: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS field_names_table (
				tag text, epoch bigint, field_name text, uuid text,
				PRIMARY KEY ((tag, epoch), field_name)
			) %s`, general),
		},
		{
			name: "stats_table",
			cql: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stats_table (
				t2 bigint, tag_bucket int, t1 bigint, tag text, uuid text, fields map<text, text>,
				PRIMARY KEY ((t2, tag_bucket), t1, uuid)
			) %s`, general),
		},
		{
			name: "session_table",
			cql: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS session_table (
				t2 bigint, session_id text, is_si boolean, is_client boolean, t1 bigint, uuid text,
				total_bytes text, bytes_from_client text, bytes_from_server text,
				PRIMARY KEY ((t2, session_id, is_si, is_client), t1, uuid)
			) %s`, general),
		},
		{
			name: systemObjectTable,
			cql: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				key text, name text, value text,
				PRIMARY KEY (key, name)
			) %s`, systemObjectTable, general),
		},
	}
}

func compactionClause(strategy string) string {
	if strategy == `` {
		return ``
	}
	return fmt.Sprintf(`WITH compaction = {'class': '%s'}`, strategy)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != `` {
			return v
		}
	}
	return ``
}

const systemObjectKey = "collector"

// bootstrapSystemObjectTable writes the two rows SYSTEM_OBJECT_TABLE
// carries under the same key: a "timestamps" row recording when this
// schema version was created, and a separate "ttl" row recording the TTL
// classes in effect. These are intentionally NOT merged into one row: the
// name column is how a reader disambiguates them, and collapsing the two
// would lose that distinction (preserved Open Question, see DESIGN.md).
func (i *Initializer) bootstrapSystemObjectTable(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if err := i.store.InsertRow(ctx, systemObjectTable, store.Row{
		"key":   systemObjectKey,
		"name":  "timestamps",
		"value": now,
	}, 0); err != nil {
		return err
	}

	ttlSummary := fmt.Sprintf("flow=%d,stats=%d,config_audit=%d,global=%d",
		i.cfg.TTL.Flow_Ttl, i.cfg.TTL.Stats_Ttl, i.cfg.TTL.Config_Audit_Ttl, i.cfg.TTL.Global_Ttl)

	return i.store.InsertRow(ctx, systemObjectTable, store.Row{
		"key":   systemObjectKey,
		"name":  "ttl",
		"value": ttlSummary,
	}, 0)
}
