/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package model

import "strings"

// LinkMapEntry is the per-overlay-interface mapping described in the
// GLOSSARY's "Link map" entry: underlay, link type, traffic destination
// class, and opaque link metadata, encoded "underlay@type@dest@metadata".
type LinkMapEntry struct {
	Underlay          string
	LinkType          string
	TrafficDestination string
	LinkMetadata      string
}

// ParseLinkMapValue splits a linkmap value on '@' into its four components
// per spec.md §4.2.
func ParseLinkMapValue(v string) LinkMapEntry {
	parts := strings.SplitN(v, "@", 4)
	var e LinkMapEntry
	if len(parts) > 0 {
		e.Underlay = parts[0]
	}
	if len(parts) > 1 {
		e.LinkType = parts[1]
	}
	if len(parts) > 2 {
		e.TrafficDestination = parts[2]
	}
	if len(parts) > 3 {
		e.LinkMetadata = parts[3]
	}
	return e
}

// HostnameRecord enriches a record keyed by hostname (spec.md §3.1).
type HostnameRecord struct {
	Hostname string
	Tenant   string
	Location string
	Device   string
	Tags     string // free-form key/value blob
	LinkMap  map[string]string
}

// TenantRecord enriches a record keyed by tenant name.
type TenantRecord struct {
	Tenant      string
	TenantAddr  string
	Tags        string
	DscpMapIPv4 map[int64]string // dscp code -> alias
	DscpMapIPv6 map[int64]string
}

// SlaProfileRecord enriches a record keyed by (tenant, device, sla-profile).
type SlaProfileRecord struct {
	Tenant     string
	Device     string
	SlaProfile string
	SlaParams  string // free-form key/value blob
}

// ParseTagsBlob parses a free-form "k1=v1,k2=v2" style blob into a map, as
// used for the Tags/SlaParams fields on enrichment records.
func ParseTagsBlob(blob string) map[string]string {
	out := make(map[string]string)
	if blob == `` {
		return out
	}
	for _, kv := range strings.Split(blob, ",") {
		kv = strings.TrimSpace(kv)
		if kv == `` {
			continue
		}
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			out[strings.TrimSpace(kv[:idx])] = strings.TrimSpace(kv[idx+1:])
		}
	}
	return out
}

// EnrichmentSnapshot is the immutable, atomically-swapped view of all
// enrichment tables (design note §9: "publish immutable snapshots behind a
// single atomic handle"). Decorators read a snapshot without locking; the
// config subsystem publishes replacement snapshots on update.
type EnrichmentSnapshot struct {
	Hostnames    map[string]HostnameRecord
	Tenants      map[string]TenantRecord
	SlaProfiles  map[string]SlaProfileRecord // key: tenant::device::sla-profile
}

func NewEnrichmentSnapshot() *EnrichmentSnapshot {
	return &EnrichmentSnapshot{
		Hostnames:   make(map[string]HostnameRecord),
		Tenants:     make(map[string]TenantRecord),
		SlaProfiles: make(map[string]SlaProfileRecord),
	}
}

func SlaProfileKey(tenant, device, slaProfile string) string {
	return tenant + "::" + device + "::" + slaProfile
}
