/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package admission implements the admission controller of spec.md §4.5:
// three watermarked signals (submission queue depth, disk usage, pending
// compactions) are combined into a single severity level, which gates
// which message classes are accepted.
package admission

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gravwell/structuredsyslogd/internal/config"
	"github.com/gravwell/structuredsyslogd/internal/model"
)

// Severity is the admission-control level derived from the watermarked
// signals: higher values mean more aggressive shedding.
type Severity int

const (
	SeverityNone Severity = iota
	SeveritySL0
	SeveritySL1
	SeveritySL2
)

// Signals is one observation of the three admission-control inputs
// (spec.md §4.5).
type Signals struct {
	QueueDepth         uint64
	DiskUsagePercent   uint64
	PendingCompactions uint64
}

// classThreshold is the severity at which each checked message class
// starts being dropped. UVE and OBJECT telemetry is shed first since it is
// the least operationally critical; SYSTEM and SESSION records are kept
// until the signal reaches the highest severity.
var classThreshold = map[model.MessageClass]Severity{
	model.ClassUVE:     SeveritySL1,
	model.ClassObject:  SeveritySL1,
	model.ClassSystem:  SeveritySL2,
	model.ClassSession: SeveritySL2,
}

// Controller tracks the current severity per signal with hysteresis: a
// signal rises against the High watermark triple and falls against the
// (lower) Low triple, so a momentary dip below the high threshold doesn't
// immediately clear the drop state.
type Controller struct {
	mu sync.Mutex

	queueWM       config.WatermarkConfig
	diskWM        config.WatermarkConfig
	compactionWM  config.WatermarkConfig

	queueSev      Severity
	diskSev       Severity
	compactionSev Severity

	dropped *prometheus.CounterVec
}

func New(queueWM, diskWM, compactionWM config.WatermarkConfig, reg prometheus.Registerer) *Controller {
	c := &Controller{
		queueWM:      queueWM,
		diskWM:       diskWM,
		compactionWM: compactionWM,
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "structuredsyslogd_admission_dropped_total",
			Help: "Records dropped by the admission controller, by message class.",
		}, []string{"class"}),
	}
	if reg != nil {
		reg.MustRegister(c.dropped)
	}
	return c
}

// Observe updates the controller's severity state from a fresh signal
// reading. The effective severity (EffectiveSeverity) is always the
// maximum across the three signals.
func (c *Controller) Observe(s Signals) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueSev = nextSeverity(c.queueSev, s.QueueDepth, c.queueWM)
	c.diskSev = nextSeverity(c.diskSev, s.DiskUsagePercent, c.diskWM)
	c.compactionSev = nextSeverity(c.compactionSev, s.PendingCompactions, c.compactionWM)
}

// EffectiveSeverity is the worst of the three per-signal severities.
func (c *Controller) EffectiveSeverity() Severity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maxSeverity(c.queueSev, maxSeverity(c.diskSev, c.compactionSev))
}

// ShouldDrop reports whether a record of the given message class must be
// dropped at the controller's current severity (property P5: monotonic in
// severity — raising the effective severity never un-drops a class that
// was already being dropped). FLOW is unconditional; classes outside the
// four checked ones always pass.
func (c *Controller) ShouldDrop(class model.MessageClass) bool {
	if class == model.ClassFlow {
		c.dropped.WithLabelValues("FLOW").Inc()
		return true
	}
	threshold, checked := classThreshold[class]
	if !checked {
		return false
	}
	if c.EffectiveSeverity() >= threshold {
		c.dropped.WithLabelValues(classLabel(class)).Inc()
		return true
	}
	return false
}

func classLabel(class model.MessageClass) string {
	switch class {
	case model.ClassUVE:
		return "UVE"
	case model.ClassObject:
		return "OBJECT"
	case model.ClassSystem:
		return "SYSTEM"
	case model.ClassSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

func maxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// nextSeverity applies the triple with hysteresis: rising crossings use
// the High triple, falling crossings use the (lower) Low triple, so the
// severity only drops once the signal has fallen below the corresponding
// low threshold.
func nextSeverity(current Severity, value uint64, wm config.WatermarkConfig) Severity {
	rising := severityFromTriple(value, wm.High)
	if rising > current {
		return rising
	}
	falling := severityFromTriple(value, wm.Low)
	if falling < current {
		return falling
	}
	return current
}

func severityFromTriple(value uint64, t config.WatermarkTriple) Severity {
	switch {
	case value >= t.SL2_Threshold:
		return SeveritySL2
	case value >= t.SL1_Threshold:
		return SeveritySL1
	case value >= t.SL0_Threshold:
		return SeveritySL0
	default:
		return SeverityNone
	}
}
