// Package metrics exposes the application-level prometheus instruments.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stokvelhq/patron/internal/config"
	"go.uber.org/fx"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	webhookEvents *prometheus.CounterVec
	rateRefresh   *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
}

type Params struct {
	fx.In

	Cfg        config.Config
	Registerer prometheus.Registerer `optional:"true"`
}

func New(p Params) (*Metrics, error) {
	registerer := p.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(p.Cfg.AppName)
	if serviceName == "" {
		serviceName = "patron"
	}
	environment := strings.TrimSpace(p.Cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "patron_webhook_events_total",
		Help:        "Inbound gateway webhook events by kind and dispatch result.",
		ConstLabels: constLabels,
	}, []string{"event", "result"})
	rateRefresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "patron_exchange_rate_refresh_total",
		Help:        "Exchange rate refresh attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "patron_checkouts_total",
		Help:        "Checkout sessions started by tier and frequency.",
		ConstLabels: constLabels,
	}, []string{"tier", "frequency"})

	for _, collector := range []prometheus.Collector{webhookEvents, rateRefresh, checkouts} {
		if err := registerer.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = already
				continue
			}
			return nil, err
		}
	}

	return &Metrics{
		webhookEvents: webhookEvents,
		rateRefresh:   rateRefresh,
		checkouts:     checkouts,
	}, nil
}

// RecordWebhookEvent increments webhook event counts.
func (m *Metrics) RecordWebhookEvent(event, result string) {
	if m == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	m.webhookEvents.WithLabelValues(event, result).Inc()
}

// RecordRateRefresh increments rate refresh attempt counts.
func (m *Metrics) RecordRateRefresh(outcome string) {
	if m == nil {
		return
	}
	m.rateRefresh.WithLabelValues(outcome).Inc()
}

// RecordCheckout increments started checkout counts.
func (m *Metrics) RecordCheckout(tier, frequency string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(tier, frequency).Inc()
}

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)
