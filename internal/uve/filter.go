/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package uve

import (
	"strings"

	"github.com/gravwell/structuredsyslogd/internal/model"
)

// shouldSkip applies the aggregator's tag-specific filter rules
// (spec.md §4.3): interface names rooted under the LAN side, the
// trust/untrust security-zone boundary interfaces, session records closed
// for an uninteresting reason, and SNMP traps from a HUB-role device on
// anything but an "st" (secure tunnel) interface are all excluded from
// summarization.
func shouldSkip(rec *model.SyslogRecord) bool {
	ifName := rec.GetString("interface-name")
	if strings.HasPrefix(ifName, "LAN-") {
		return true
	}
	if strings.HasPrefix(ifName, "trust") || strings.HasPrefix(ifName, "untrust") {
		return true
	}

	switch rec.GetString("reason") {
	case "session closed", "application detected":
		return true
	}

	if rec.GetString("device-role") == "HUB" && !strings.HasPrefix(ifName, "st") {
		return true
	}

	return false
}
