/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package writer

import (
	"encoding/json"
	"strings"

	"github.com/gravwell/structuredsyslogd/internal/model"
)

// statsTagBuckets is the number of DJB2 hash buckets the stats table's tag
// column is split across (spec.md §4.4).
const statsTagBuckets = 4

// djb2 is Dan Bernstein's string hash, used to spread the stats table's
// tag dimension across statsTagBuckets partitions.
func djb2(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

func statsTagBucket(tag string) int {
	return int(djb2(tag) % statsTagBuckets)
}

// sigil prefixes the stats table's per-field JSON encoding with a type tag
// so a reader can recover the original Value kind without a schema lookup:
// |s| string, |n| integer, |d| double, |a| array, |m| map.
const (
	sigilString = "|s|"
	sigilInt    = "|n|"
	sigilDouble = "|d|"
	sigilArray  = "|a|"
	sigilMap    = "|m|"
)

// encodeStatsValue renders one field for the stats table: the sigil
// followed by its JSON encoding.
func encodeStatsValue(v model.Value) (string, error) {
	switch v.Kind {
	case model.KindInt64:
		b, err := json.Marshal(v.Int)
		return sigilInt + string(b), err
	case model.KindFloat64:
		b, err := json.Marshal(v.Flt)
		return sigilDouble + string(b), err
	default:
		b, err := json.Marshal(v.Str)
		return sigilString + string(b), err
	}
}

// encodeStatsArray and encodeStatsMap are exposed for stats fields that
// are themselves composite (e.g. a list-valued APPQOE report); most record
// fields go through encodeStatsValue.
func encodeStatsArray(vals []model.Value) (string, error) {
	rendered := make([]string, 0, len(vals))
	for _, v := range vals {
		enc, err := encodeStatsValue(v)
		if err != nil {
			return "", err
		}
		rendered = append(rendered, enc)
	}
	b, err := json.Marshal(rendered)
	return sigilArray + string(b), err
}

func encodeStatsMap(vals map[string]model.Value) (string, error) {
	rendered := make(map[string]string, len(vals))
	for k, v := range vals {
		enc, err := encodeStatsValue(v)
		if err != nil {
			return "", err
		}
		rendered[k] = enc
	}
	b, err := json.Marshal(rendered)
	return sigilMap + string(b), err
}

// encodeStatsRecord encodes every field of rec for the stats table.
func encodeStatsRecord(rec *model.SyslogRecord) (map[string]string, error) {
	out := make(map[string]string, rec.Len())
	for _, k := range rec.Keys() {
		v, _ := rec.Get(k)
		enc, err := encodeStatsValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = enc
	}
	return out, nil
}

// isConfigAuditTag reports whether tag uses the CONFIGAUDIT TTL class
// instead of the table's usual class (spec.md §4.4: VncApiConfigLog is
// special-cased).
func isConfigAuditTag(tag string) bool {
	return strings.EqualFold(tag, model.TagVncApiConfigLog)
}
