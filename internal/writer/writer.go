/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package writer is the wide-column table writer of spec.md §4.4: it maps
// decorated and summarized records onto the message, object_value,
// field_names, stats, and session tables, with the row/column compositions
// and TTL classes spec.md §4.4/§6 describe.
package writer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gravwell/structuredsyslogd/internal/config"
	"github.com/gravwell/structuredsyslogd/internal/model"
	"github.com/gravwell/structuredsyslogd/internal/store"
)

const (
	tableMessage     = "message_table"
	tableObjectValue = "object_value_table"
	tableFieldNames  = "field_names_table"
	tableStats       = "stats_table"
	tableSession     = "session_table"

	// fieldNameEpochShift coarsens the field-name dedup cache beyond
	// individual T2 buckets (spec.md §4.4, glossary "Epoch").
	fieldNameEpochShift = 4
)

// fieldNamesNamespace is the fixed all-0xff namespace used to derive
// deterministic UUIDs for field_names rows (spec.md §4.4): the row
// identity must be stable across restarts so repeated writes for the same
// (tag, epoch, field) dedup rather than accumulate.
var fieldNamesNamespace = uuid.UUID{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

var ErrWritesDisabled = errors.New("database writes disabled by configuration")

// Writer is the table writer; one instance is shared by every pipeline
// worker and is safe for concurrent use.
type Writer struct {
	store store.Store
	ttl   config.TTLConfig

	disableAll      bool
	disableStats    bool
	disableMessages bool

	mu              sync.Mutex
	seenFieldNames  map[string]struct{} // key: tag|field|epoch
}

func New(s store.Store, ttl config.TTLConfig, disableAll, disableStats, disableMessages bool) *Writer {
	return &Writer{
		store:           s,
		ttl:             ttl,
		disableAll:      disableAll,
		disableStats:    disableStats,
		disableMessages: disableMessages,
		seenFieldNames:  make(map[string]struct{}),
	}
}

// WriteMessage writes one record to the message table, keyed by its T2/T1
// time bucket (spec.md §4.4).
func (w *Writer) WriteMessage(ctx context.Context, rec *model.SyslogRecord) error {
	if w.disableAll || w.disableMessages {
		return ErrWritesDisabled
	}
	t2, t1 := model.SplitTimestamp(rec.TimestampUsec())
	row := store.Row{
		"t2":       t2,
		"t1":       t1,
		"tag":      rec.Tag(),
		"hostname": rec.GetString("hostname"),
		"message":  rec.GetString("message"),
		"uuid":     uuid.New().String(),
	}
	return w.store.InsertRow(ctx, tableMessage, row, w.ttlFor(tableMessage, rec.Tag()))
}

// WriteObjectValue writes one object-indexed record; the index column is
// prefixed with the T2 bucket per spec.md's secondary-index invariant
// (property P3).
func (w *Writer) WriteObjectValue(ctx context.Context, objectType, objectID string, rec *model.SyslogRecord) error {
	if w.disableAll || w.disableMessages {
		return ErrWritesDisabled
	}
	t2, t1 := model.SplitTimestamp(rec.TimestampUsec())
	row := store.Row{
		"object_type":  objectType,
		"object_index": model.PrefixedIndexValue(t2, objectID),
		"t2":           t2,
		"t1":           t1,
		"uuid":         uuid.New().String(),
	}
	return w.store.InsertRow(ctx, tableObjectValue, row, w.ttlFor(tableObjectValue, rec.Tag()))
}

// WriteFieldNames records that tag's field set was seen in this epoch,
// deduplicating repeats within the same epoch (spec.md §4.4, property P7).
// Returns (wrote=false, nil) when every field was already recorded.
func (w *Writer) WriteFieldNames(ctx context.Context, tag string, t2 int64, fields []string) (wrote bool, err error) {
	if w.disableAll || w.disableMessages {
		return false, ErrWritesDisabled
	}
	epoch := model.FieldNameEpoch(t2, fieldNameEpochShift)

	var fresh []string
	w.mu.Lock()
	for _, f := range fields {
		key := dedupKey(epoch, tag, f)
		if _, ok := w.seenFieldNames[key]; !ok {
			w.seenFieldNames[key] = struct{}{}
			fresh = append(fresh, f)
		}
	}
	w.mu.Unlock()

	if len(fresh) == 0 {
		return false, nil
	}

	for _, f := range fresh {
		id := uuid.NewSHA1(fieldNamesNamespace, []byte(dedupKey(epoch, tag, f)))
		row := store.Row{
			"uuid":       id.String(),
			"tag":        tag,
			"field_name": f,
			"epoch":      epoch,
		}
		if err := w.store.InsertRow(ctx, tableFieldNames, row, w.ttlFor(tableFieldNames, tag)); err != nil {
			return true, err
		}
	}
	return true, nil
}

func dedupKey(epoch int64, tag, field string) string {
	return tag + "|" + field + "|" + model.IndexPrefix(epoch)
}

// WriteStats writes one record to the stats table, type-sigil-encoding
// every field and bucketing the tag dimension by its DJB2 hash
// (spec.md §4.4).
func (w *Writer) WriteStats(ctx context.Context, rec *model.SyslogRecord) error {
	if w.disableAll || w.disableStats {
		return ErrWritesDisabled
	}
	encoded, err := encodeStatsRecord(rec)
	if err != nil {
		return err
	}
	t2, t1 := model.SplitTimestamp(rec.TimestampUsec())
	row := store.Row{
		"t2":         t2,
		"t1":         t1,
		"tag":        rec.Tag(),
		"tag_bucket": statsTagBucket(rec.Tag()),
		"uuid":       uuid.New().String(),
		"fields":     encoded,
	}
	return w.store.InsertRow(ctx, tableStats, row, w.ttlFor(tableStats, rec.Tag()))
}

// WriteSession writes one session-traffic record, carrying the is_si
// (server-initiated) and is_client dimensions the session table indexes
// alongside time (spec.md §4.4 supplemented features).
func (w *Writer) WriteSession(ctx context.Context, rec *model.SyslogRecord) error {
	if w.disableAll || w.disableMessages {
		return ErrWritesDisabled
	}
	t2, t1 := model.SplitTimestamp(rec.TimestampUsec())
	isSI, _ := rec.GetInt64("is-si")
	isClient, _ := rec.GetInt64("is-client")
	row := store.Row{
		"t2":                  t2,
		"t1":                  t1,
		"session_id":          rec.GetString("session-id-32"),
		"is_si":               isSI != 0,
		"is_client":           isClient != 0,
		"total_bytes":         rec.GetString("total-bytes"),
		"bytes_from_client":   rec.GetString("bytes-from-client"),
		"bytes_from_server":   rec.GetString("bytes-from-server"),
		"uuid":                uuid.New().String(),
	}
	return w.store.InsertRow(ctx, tableSession, row, w.ttlFor(tableSession, rec.Tag()))
}

// ttlFor selects the TTL class for a table/tag pair. VncApiConfigLog
// always uses the CONFIGAUDIT class regardless of table, matching the
// source telemetry's dedicated long-retention path for config audit
// events (spec.md §4.4 supplemented features).
func (w *Writer) ttlFor(table, tag string) time.Duration {
	if isConfigAuditTag(tag) {
		return hoursToDuration(w.ttl.Config_Audit_Ttl)
	}
	switch table {
	case tableStats:
		return hoursToDuration(w.ttl.Stats_Ttl)
	case tableSession:
		return hoursToDuration(w.ttl.Flow_Ttl)
	default:
		return hoursToDuration(w.ttl.Global_Ttl)
	}
}

func hoursToDuration(hours uint64) time.Duration {
	return time.Duration(hours) * time.Hour
}
