/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"context"

	log "github.com/gravwell/structuredsyslogd/internal/applog"
	"github.com/gravwell/structuredsyslogd/internal/admission"
	"github.com/gravwell/structuredsyslogd/internal/decorator"
	"github.com/gravwell/structuredsyslogd/internal/forwarder"
	"github.com/gravwell/structuredsyslogd/internal/model"
	"github.com/gravwell/structuredsyslogd/internal/uve"
	"github.com/gravwell/structuredsyslogd/internal/writer"
)

// pipeline implements framing.Sink: every accepted frame is decorated,
// admission-checked, summarized when applicable, written, and mirrored to
// configured forwarders, in that order (spec.md §4).
type pipeline struct {
	ctx context.Context

	types      model.MessageTypeTable
	decorator  *decorator.Decorator
	admission  *admission.Controller
	aggregator *uve.Aggregator
	writer     *writer.Writer
	forwarders []*forwarder.Forwarder

	log *log.Logger
}

func (p *pipeline) Accept(rec *model.SyslogRecord, raw []byte) {
	p.decorator.Decorate(rec)

	class := model.ClassifyTag(rec.Tag())
	if p.admission.ShouldDrop(class) {
		return
	}

	mt, known := p.types.Lookup(rec.Tag())

	if known && mt.ProcessAndSummarize {
		if groups, ok := p.aggregator.Summarize(rec); ok {
			for group, out := range groups {
				var err error
				if group == uve.GroupSessionTraffic {
					err = p.writer.WriteSession(p.ctx, out)
				} else {
					err = p.writer.WriteStats(p.ctx, out)
				}
				if err != nil && p.log != nil {
					p.log.Warn("stats write failed", log.KV("tag", rec.Tag()), log.KVErr(err))
				}
			}
		}
	}

	if !known || mt.ProcessAndStore {
		if err := p.writer.WriteMessage(p.ctx, rec); err != nil && p.log != nil {
			p.log.Warn("message write failed", log.KV("tag", rec.Tag()), log.KVErr(err))
		}
		if _, err := p.writer.WriteFieldNames(p.ctx, rec.Tag(), splitT2(rec), rec.Keys()); err != nil && p.log != nil {
			p.log.Warn("field names write failed", log.KV("tag", rec.Tag()), log.KVErr(err))
		}
		if class == model.ClassObject {
			if err := p.writer.WriteObjectValue(p.ctx, rec.Tag(), objectID(rec), rec); err != nil && p.log != nil {
				p.log.Warn("object value write failed", log.KV("tag", rec.Tag()), log.KVErr(err))
			}
		}
	}

	if known && mt.Forward {
		for _, f := range p.forwarders {
			f.Accept(rec, raw)
		}
	}
}

func splitT2(rec *model.SyslogRecord) int64 {
	t2, _ := model.SplitTimestamp(rec.TimestampUsec())
	return t2
}

// objectID picks the object_value table's object-key string (spec.md §4.4):
// the record's own name when the device reported one, falling back to the
// reporting hostname.
func objectID(rec *model.SyslogRecord) string {
	if name := rec.GetString("name"); name != `` {
		return name
	}
	return rec.GetString("hostname")
}
