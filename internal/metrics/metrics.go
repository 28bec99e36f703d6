// Package metrics exports reminder and timeline-edit counters to Prometheus.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements reminder.Observer and records timeline edits.
type Metrics struct {
	armed         *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	fired         *prometheus.CounterVec
	channelFailed *prometheus.CounterVec
	edits         *prometheus.CounterVec
}

// New registers the collectors with reg (the default registerer when nil).
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "estatecrm"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		armed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_armed_total",
			Help:      "Reminder timers armed by scheduling passes.",
		}, []string{"category"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_skipped_total",
			Help:      "Reminder opportunities not armed, by reason.",
		}, []string{"category", "reason"}),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_fired_total",
			Help:      "Reminders fired.",
		}, []string{"category"}),
		channelFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_channel_failures_total",
			Help:      "Notification channel failures, swallowed after counting.",
		}, []string{"channel"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_edits_total",
			Help:      "Timeline edit gestures by operation and result.",
		}, []string{"op", "result"}),
	}
	collectors := []*prometheus.CounterVec{m.armed, m.skipped, m.fired, m.channelFailed, m.edits}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, fmt.Errorf("register metric: %w", err)
			}
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, fmt.Errorf("register metric: %w", err)
			}
			collectors[i] = existing
		}
	}
	m.armed, m.skipped, m.fired, m.channelFailed, m.edits = collectors[0], collectors[1], collectors[2], collectors[3], collectors[4]
	return m, nil
}

func (m *Metrics) Armed(category string) {
	if m == nil {
		return
	}
	m.armed.WithLabelValues(category).Inc()
}

func (m *Metrics) Skipped(category, reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(category, reason).Inc()
}

func (m *Metrics) Fired(category string) {
	if m == nil {
		return
	}
	m.fired.WithLabelValues(category).Inc()
}

func (m *Metrics) ChannelFailed(channel string) {
	if m == nil {
		return
	}
	m.channelFailed.WithLabelValues(channel).Inc()
}

// Edit records one timeline edit; err nil means it was saved.
func (m *Metrics) Edit(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.edits.WithLabelValues(op, result).Inc()
}
