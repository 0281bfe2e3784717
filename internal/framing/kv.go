/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package framing

import (
	"strings"

	"github.com/gravwell/structuredsyslogd/internal/model"
)

var xmlUnescaper = strings.NewReplacer(
	`&quot;`, `"`,
	`&apos;`, `'`,
	`&lt;`, `<`,
	`&gt;`, `>`,
	`&amp;`, `&`,
)

// ParseStructuredFields parses a "key1=\"value1\" key2=\"value2\" ..." block
// into key/value pairs, unescaping the control characters spec.md §4.1 names
// (&amp; &lt; &gt; &quot; &apos;). It returns ErrMalformedFrame when a quoted
// value is never terminated before the end of the block.
func ParseStructuredFields(block []byte) (map[string]string, error) {
	out := make(map[string]string)
	s := string(block)
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq == -1 {
			break
		}
		key := strings.TrimSpace(s[i : i+eq])
		i += eq + 1
		if i >= len(s) || s[i] != '"' {
			return out, ErrMalformedFrame
		}
		i++
		start := i
		for i < len(s) && s[i] != '"' {
			i++
		}
		if i >= len(s) {
			return out, ErrMalformedFrame
		}
		val := s[start:i]
		i++ // skip closing quote
		if strings.IndexByte(val, '&') >= 0 {
			val = xmlUnescaper.Replace(val)
		}
		out[key] = val
	}
	return out, nil
}

// BuildRecord assembles a SyslogRecord from a parsed header, tag, and
// structured field block, coercing fields MessageTypeConfig marks as integer
// per spec.md §4.1. timestampUsec is the already-resolved epoch timestamp.
func BuildRecord(h Header, tag string, timestampUsec int64, fields map[string]string, mt model.MessageTypeConfig) *model.SyslogRecord {
	rec := model.NewSyslogRecord()
	rec.Set("timestamp", model.Int(timestampUsec))
	rec.Set("hostname", model.String(h.Hostname))
	rec.Set("tag", model.String(tag))
	rec.Set("message", model.String(string(h.Body)))

	for k, v := range fields {
		if mt.IsIntField(k) {
			if iv, ok := (model.Value{Kind: model.KindString, Str: v}).AsInt64(); ok {
				rec.Set(k, model.Int(iv))
				continue
			}
		}
		rec.Set(k, model.String(v))
	}
	return rec
}
