/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package uve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravwell/structuredsyslogd/internal/model"
)

func volUpdateRecord(sessionID, totalBytes int64) *model.SyslogRecord {
	rec := model.NewSyslogRecord()
	rec.Set("tag", model.String(model.TagApptrackSessionVolUpdate))
	rec.Set("tenant", model.String("acme"))
	rec.Set("location", model.String("dc1"))
	rec.Set("device", model.String("edge-1"))
	rec.Set("session-id-32", model.Int(sessionID))
	rec.Set("total-bytes", model.Int(totalBytes))
	rec.Set("bytes-from-client", model.Int(totalBytes/2))
	rec.Set("bytes-from-server", model.Int(totalBytes-totalBytes/2))
	return rec
}

func closeRecord(sessionID, totalBytes int64) *model.SyslogRecord {
	rec := volUpdateRecord(sessionID, totalBytes)
	rec.Set("tag", model.String(model.TagApptrackSessionClose))
	return rec
}

// TestSummarizeDataSumsToFinalCumulative verifies property P6: the sum of
// every emitted interval diff equals the final cumulative value reported
// at session close.
func TestSummarizeDataSumsToFinalCumulative(t *testing.T) {
	agg := New(16)

	cumulative := []int64{1000, 2500, 4200, 5000}
	var sum int64
	for i, tb := range cumulative {
		var rec *model.SyslogRecord
		if i == len(cumulative)-1 {
			rec = closeRecord(42, tb)
		} else {
			rec = volUpdateRecord(42, tb)
		}
		out, ok := agg.Summarize(rec)
		require.True(t, ok)
		diffRec := out[GroupSessionTraffic]
		tb2, _ := diffRec.GetInt64("total-bytes")
		sum += tb2
	}
	require.EqualValues(t, cumulative[len(cumulative)-1], sum)
}

func TestSummarizeDataRejectsRegression(t *testing.T) {
	agg := New(16)

	_, ok := agg.Summarize(volUpdateRecord(7, 5000))
	require.True(t, ok)

	_, ok = agg.Summarize(volUpdateRecord(7, 1000))
	require.False(t, ok)
}

func smvRecord(rtt, jitter, loss int64) *model.SyslogRecord {
	rec := model.NewSyslogRecord()
	rec.Set("tag", model.String(model.TagAppqoeSLAMetricViolation))
	rec.Set("rtt", model.Int(rtt))
	rec.Set("jitter", model.Int(jitter))
	rec.Set("packet-loss", model.Int(loss))
	return rec
}

// TestSummarizeSmvScoreBounds verifies property P8: the KPI score lands in
// [0,90] for ordinary inputs.
func TestSummarizeSmvScoreBounds(t *testing.T) {
	agg := New(16)
	out, ok := agg.Summarize(smvRecord(20, 2, 0))
	require.True(t, ok)

	score, sok := out[GroupKPI].Get("link-score")
	require.True(t, sok)
	require.GreaterOrEqual(t, score.Flt, 0.0)
	require.LessOrEqual(t, score.Flt, 90.0)
}

// TestSummarizeSmvSentinelsSuppressScore verifies property P8's sentinel
// case: an unmeasured RTT/jitter/packet-loss suppresses the score entirely.
func TestSummarizeSmvSentinelsSuppressScore(t *testing.T) {
	agg := New(16)

	_, ok := agg.Summarize(smvRecord(4294967295, 2, 0))
	require.False(t, ok)

	_, ok = agg.Summarize(smvRecord(20, 2, 255))
	require.False(t, ok)
}

func TestShouldSkipFiltersLANAndTrustInterfaces(t *testing.T) {
	rec := model.NewSyslogRecord()
	rec.Set("interface-name", model.String("LAN-ge-0/0/1"))
	require.True(t, shouldSkip(rec))

	rec2 := model.NewSyslogRecord()
	rec2.Set("interface-name", model.String("trust-ge-0/0/1"))
	require.True(t, shouldSkip(rec2))

	rec3 := model.NewSyslogRecord()
	rec3.Set("interface-name", model.String("ge-0/0/2"))
	require.False(t, shouldSkip(rec3))
}

func TestShouldSkipHubRoleRequiresSecureTunnel(t *testing.T) {
	rec := model.NewSyslogRecord()
	rec.Set("device-role", model.String("HUB"))
	rec.Set("interface-name", model.String("ge-0/0/0"))
	require.True(t, shouldSkip(rec))

	rec2 := model.NewSyslogRecord()
	rec2.Set("device-role", model.String("HUB"))
	rec2.Set("interface-name", model.String("st0.0"))
	require.False(t, shouldSkip(rec2))
}
