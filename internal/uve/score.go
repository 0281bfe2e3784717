/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package uve

const (
	// sentinels mark "not measured" on the wire; a KPI score is suppressed
	// rather than computed from them (spec.md §4.3, property P8).
	rttSentinel        = 4294967295
	jitterSentinel     = 4294967295
	packetLossSentinel = 255

	// Default coefficients (spec.md §4.3): the wire factors are percentages
	// scaled by 100, so latency=100/jitter=200/packet_loss=250 become 1.0,
	// 2.0, 2.5 below; threshold is a literal effective-latency millisecond
	// value.
	latencyFactor     = 1.0
	jitterFactor      = 2.0
	packetLossFactor  = 2.5
	latencyThreshold  = 160.0
)

// kpiScore computes the link quality-of-experience score from round-trip
// time, jitter, and packet loss, all in milliseconds/percent: an
// effective-latency term, a two-branch R-factor, and the ITU-T cubic MOS
// correction, reported as MOS·20 (spec.md §4.3, property P8).
func kpiScore(rttMs, jitterMs, packetLossPct float64) (score float64, ok bool) {
	if rttMs == rttSentinel || jitterMs == jitterSentinel || packetLossPct == packetLossSentinel {
		return 0, false
	}

	effectiveLatency := latencyFactor*rttMs/2 + jitterFactor*jitterMs + 10

	var r float64
	if effectiveLatency < latencyThreshold {
		r = 93.2 - (effectiveLatency / 40)
	} else {
		r = 93.2 - ((effectiveLatency - 120) / 10)
	}
	r -= packetLossPct * packetLossFactor
	if r < 0 {
		r = 0
	} else if r > 100 {
		r = 100
	}

	mos := 1 + 0.035*r + 0.000007*r*(r-60)*(100-r)

	return mos * 20, true
}
