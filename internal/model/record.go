/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package model holds the core data types shared across the structured
// syslog pipeline: the tagged field map (SyslogRecord), the per-tag
// MessageTypeConfig, and the time-bucket helpers used throughout the
// write path.
package model

import (
	"fmt"
	"strconv"
)

// ValueKind distinguishes the variants a Value can hold.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt64
	KindFloat64
)

// Value is the tagged two (extended to three) variant sum type named in
// spec.md's design notes §9: a field is either a string, a signed 64-bit
// integer, or (on the stats path) a double.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Flt  float64
}

func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Int(i int64) Value     { return Value{Kind: KindInt64, Int: i} }
func Float(f float64) Value { return Value{Kind: KindFloat64, Flt: f} }

// AsString renders the value as a string regardless of its kind.
func (v Value) AsString() string {
	switch v.Kind {
	case KindInt64:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.Flt, 'f', -1, 64)
	default:
		return v.Str
	}
}

// AsInt64 returns the value coerced to int64; ok is false if the value is a
// non-numeric string that fails to parse.
func (v Value) AsInt64() (int64, bool) {
	switch v.Kind {
	case KindInt64:
		return v.Int, true
	case KindFloat64:
		return int64(v.Flt), true
	default:
		i, err := strconv.ParseInt(v.Str, 10, 64)
		return i, err == nil
	}
}

func (v Value) IsEmpty() bool {
	return v.Kind == KindString && v.Str == ``
}

// SyslogRecord is the ordered field map produced by the parser and consumed
// by the decorator, admission controller, table writer, and UVE aggregator.
// Required fields after parsing: timestamp, hostname, tag, and the frame
// body, which is stored under the "message" key; there is no separate
// "body" field.
type SyslogRecord struct {
	order  []string
	fields map[string]Value
}

func NewSyslogRecord() *SyslogRecord {
	return &SyslogRecord{fields: make(map[string]Value, 16)}
}

// Set inserts or replaces a field, preserving first-insertion order.
func (r *SyslogRecord) Set(key string, v Value) {
	if _, ok := r.fields[key]; !ok {
		r.order = append(r.order, key)
	}
	r.fields[key] = v
}

// SetIfEmpty implements the decorator's idempotent-insert rule (spec.md
// §4.2): an existing key is replaced only when the incoming value is
// non-empty, and only when no value is already present or the existing
// value is itself empty.
func (r *SyslogRecord) SetIfEmpty(key string, v Value) {
	if existing, ok := r.fields[key]; ok && !existing.IsEmpty() {
		return
	}
	if v.IsEmpty() {
		return
	}
	r.Set(key, v)
}

func (r *SyslogRecord) Get(key string) (Value, bool) {
	v, ok := r.fields[key]
	return v, ok
}

func (r *SyslogRecord) GetString(key string) string {
	if v, ok := r.fields[key]; ok {
		return v.AsString()
	}
	return ``
}

func (r *SyslogRecord) GetInt64(key string) (int64, bool) {
	if v, ok := r.fields[key]; ok {
		return v.AsInt64()
	}
	return 0, false
}

// Keys returns the field names in insertion order.
func (r *SyslogRecord) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *SyslogRecord) Len() int { return len(r.order) }

// Clone produces a deep-enough copy for idempotency testing (P4): the field
// map and ordering are copied, values themselves are immutable.
func (r *SyslogRecord) Clone() *SyslogRecord {
	n := NewSyslogRecord()
	n.order = append([]string(nil), r.order...)
	for k, v := range r.fields {
		n.fields[k] = v
	}
	return n
}

func (r *SyslogRecord) String() string {
	return fmt.Sprintf("SyslogRecord{tag=%s host=%s fields=%d}", r.GetString("tag"), r.GetString("hostname"), r.Len())
}

// Tag returns the message type / tag field, used to look up MessageTypeConfig.
func (r *SyslogRecord) Tag() string { return r.GetString("tag") }

// TimestampUsec returns the "timestamp" field as microseconds since epoch.
func (r *SyslogRecord) TimestampUsec() int64 {
	ts, _ := r.GetInt64("timestamp")
	return ts
}
