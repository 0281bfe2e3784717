/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package framing

import (
	"time"

	"github.com/gravwell/structuredsyslogd/internal/model"
)

// Parser turns a single framed message (already extracted by a Reassembler
// or a per-packet scan) into a model.SyslogRecord. A Parser is immutable
// after construction and safe for concurrent use across connections.
type Parser struct {
	Types model.MessageTypeTable
	Now   func() time.Time
}

func NewParser(types model.MessageTypeTable) *Parser {
	return &Parser{Types: types, Now: time.Now}
}

// Parse implements spec.md §4.1's message parse: header, tag, structured
// block, int-field coercion. Tags without a known MessageTypeConfig are
// still parsed (every field kept as a string) since an unrecognized tag is
// an enrichment miss, not a parse failure (spec.md §7).
func (p *Parser) Parse(frame []byte) (*model.SyslogRecord, error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return nil, err
	}
	tag := ExtractTag(h.Body)

	block, err := StructuredBlock(h.Body)
	if err != nil {
		return nil, err
	}
	fields, err := ParseStructuredFields(block)
	if err != nil {
		return nil, err
	}

	mt := p.Types[tag] // zero value when absent: no int fields, which is safe

	now := p.Now
	if now == nil {
		now = time.Now
	}
	tsUsec := ParseTimestamp(h.TimestampRaw, now)

	return BuildRecord(h, tag, tsUsec, fields, mt), nil
}
