package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/store"
)

// StatsSource is the part of the store the collector reads
type StatsSource interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// Collector exports store counts as gauges at scrape time
type Collector struct {
	source    StatsSource
	startTime time.Time
	timeout   time.Duration

	uptime      *prometheus.Desc
	up          *prometheus.Desc
	documents   *prometheus.Desc
	published   *prometheus.Desc
	leads       *prometheus.Desc
	recentLeads *prometheus.Desc
	subscribers *prometheus.Desc
	users       *prometheus.Desc
	webhooks    *prometheus.Desc
	failed      *prometheus.Desc
}

// NewCollector creates a store-backed collector
func NewCollector(source StatsSource) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		source:      source,
		startTime:   time.Now(),
		timeout:     5 * time.Second,
		uptime:      desc("uptime_seconds", "Time since the server started"),
		up:          desc("store_up", "Whether the last store read succeeded"),
		documents:   desc("documents", "Stored content entries by kind", "kind"),
		published:   desc("documents_published", "Published content entries by kind", "kind"),
		leads:       desc("stored_leads", "Stored audit form submissions"),
		recentLeads: desc("stored_leads_last_30_days", "Audit form submissions in the last 30 days"),
		subscribers: desc("newsletter_subscribers", "Newsletter subscribers"),
		users:       desc("admin_users", "Admin users"),
		webhooks:    desc("webhooks", "Registered webhooks"),
		failed:      desc("webhook_failed_deliveries", "Recorded failed webhook deliveries"),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.uptime, c.up, c.documents, c.published, c.leads, c.recentLeads,
		c.subscribers, c.users, c.webhooks, c.failed,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, time.Since(c.startTime).Seconds())

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.source.Stats(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)

	for _, kind := range models.AllKinds {
		ch <- prometheus.MustNewConstMetric(c.documents, prometheus.GaugeValue,
			float64(stats.DocumentsByKind[kind]), string(kind))
		ch <- prometheus.MustNewConstMetric(c.published, prometheus.GaugeValue,
			float64(stats.PublishedByKind[kind]), string(kind))
	}
	ch <- prometheus.MustNewConstMetric(c.leads, prometheus.GaugeValue, float64(stats.Leads))
	ch <- prometheus.MustNewConstMetric(c.recentLeads, prometheus.GaugeValue, float64(stats.LeadsLast30Days))
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(stats.Subscribers))
	ch <- prometheus.MustNewConstMetric(c.users, prometheus.GaugeValue, float64(stats.Users))
	ch <- prometheus.MustNewConstMetric(c.webhooks, prometheus.GaugeValue, float64(stats.Webhooks))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.GaugeValue, float64(stats.FailedDeliveries))
}

// RegisterStore adds a store-backed collector to the registry
func (m *Metrics) RegisterStore(source StatsSource) error {
	return m.registry.Register(NewCollector(source))
}
