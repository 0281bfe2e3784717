/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package decorator enriches parsed records with hostname, tenant, and SLA
// profile context before they reach the UVE aggregator and table writer
// (spec.md §4.2). Enrichment tables are published as immutable snapshots
// and read through a single atomic pointer, never locked on the hot path
// (design note §9).
package decorator

import (
	"strings"
	"sync/atomic"

	"github.com/gravwell/structuredsyslogd/internal/model"
)

const (
	fieldHostname           = "hostname"
	fieldTenant             = "tenant"
	fieldLocation           = "location"
	fieldDevice             = "device"
	fieldLinkName           = "link-name"
	fieldUnderlay           = "underlay"
	fieldLinkType           = "link-type"
	fieldTrafficDestination = "traffic-destination"
	fieldLinkMetadata       = "link-metadata"
	fieldBytesFromClient    = "bytes-from-client"
	fieldBytesFromServer    = "bytes-from-server"
	fieldTotalBytes         = "total-bytes"
	fieldDscp               = "dscp"
	fieldDscpAlias          = "dscp-alias"
	fieldDestinationAddr    = "destination-address"
	fieldSlaProfile         = "sla-profile"
	tagPrefix               = "tag-"
	slaParamPrefix          = "sla-"
)

// Decorator applies hostname/tenant/SLA-profile enrichment in place.
type Decorator struct {
	snapshot atomic.Pointer[model.EnrichmentSnapshot]
}

func New(initial *model.EnrichmentSnapshot) *Decorator {
	if initial == nil {
		initial = model.NewEnrichmentSnapshot()
	}
	d := &Decorator{}
	d.snapshot.Store(initial)
	return d
}

// UpdateSnapshot publishes a new enrichment snapshot. Callers must not
// mutate s after calling this; readers may observe it as soon as this
// returns.
func (d *Decorator) UpdateSnapshot(s *model.EnrichmentSnapshot) {
	d.snapshot.Store(s)
}

// Decorate enriches rec in place. It is idempotent: running it twice over
// the same record (property P4) leaves the record unchanged the second
// time, since every insertion goes through SetIfEmpty.
func (d *Decorator) Decorate(rec *model.SyslogRecord) {
	snap := d.snapshot.Load()

	d.applyHostname(rec, snap)
	d.applyTotalBytes(rec)
	d.applyDscpAlias(rec, snap)
	d.applySlaProfile(rec, snap)
}

func (d *Decorator) applyHostname(rec *model.SyslogRecord, snap *model.EnrichmentSnapshot) {
	hr, ok := snap.Hostnames[rec.GetString(fieldHostname)]
	if !ok {
		return
	}
	rec.SetIfEmpty(fieldTenant, model.String(hr.Tenant))
	rec.SetIfEmpty(fieldLocation, model.String(hr.Location))
	rec.SetIfEmpty(fieldDevice, model.String(hr.Device))

	for k, v := range model.ParseTagsBlob(hr.Tags) {
		rec.SetIfEmpty(tagPrefix+k, model.String(v))
	}

	if linkName := rec.GetString(fieldLinkName); linkName != `` {
		if raw, ok := hr.LinkMap[linkName]; ok {
			entry := model.ParseLinkMapValue(raw)
			rec.SetIfEmpty(fieldUnderlay, model.String(entry.Underlay))
			rec.SetIfEmpty(fieldLinkType, model.String(entry.LinkType))
			rec.SetIfEmpty(fieldTrafficDestination, model.String(entry.TrafficDestination))
			rec.SetIfEmpty(fieldLinkMetadata, model.String(entry.LinkMetadata))
		}
	}
}

// applyTotalBytes derives total-bytes from the client/server counters when
// both are present and the field hasn't already been populated upstream.
func (d *Decorator) applyTotalBytes(rec *model.SyslogRecord) {
	fromClient, okC := rec.GetInt64(fieldBytesFromClient)
	fromServer, okS := rec.GetInt64(fieldBytesFromServer)
	if !okC || !okS {
		return
	}
	rec.SetIfEmpty(fieldTotalBytes, model.Int(fromClient+fromServer))
}

// applyDscpAlias resolves the numeric DSCP code to its configured alias,
// selecting the IPv4 or IPv6 table by whether the destination address
// looks like an IPv6 literal.
func (d *Decorator) applyDscpAlias(rec *model.SyslogRecord, snap *model.EnrichmentSnapshot) {
	dscp, ok := rec.GetInt64(fieldDscp)
	if !ok {
		return
	}
	tr, ok := snap.Tenants[rec.GetString(fieldTenant)]
	if !ok {
		return
	}
	table := tr.DscpMapIPv4
	if strings.Contains(rec.GetString(fieldDestinationAddr), ":") {
		table = tr.DscpMapIPv6
	}
	if alias, ok := table[dscp]; ok {
		rec.SetIfEmpty(fieldDscpAlias, model.String(alias))
	}
}

func (d *Decorator) applySlaProfile(rec *model.SyslogRecord, snap *model.EnrichmentSnapshot) {
	profile := rec.GetString(fieldSlaProfile)
	if profile == `` {
		return
	}
	key := model.SlaProfileKey(rec.GetString(fieldTenant), rec.GetString(fieldDevice), profile)
	sp, ok := snap.SlaProfiles[key]
	if !ok {
		return
	}
	for k, v := range model.ParseTagsBlob(sp.SlaParams) {
		rec.SetIfEmpty(slaParamPrefix+k, model.String(v))
	}
}
