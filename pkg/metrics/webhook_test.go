package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestWebhookMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWebhookMetrics(reg)
	channelType := "woocommerce"
	metrics.ObserveDuration(channelType, 120*time.Millisecond)
	metrics.IncDelivered(channelType, "order.created")
	metrics.AddStockChanges(channelType, 3)
	metrics.IncFailure(channelType, "invalid_signature")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "webhook_deliveries_total", "topic", "order.created"); err != nil {
		t.Fatalf("fetch deliveries: %v", err)
	} else if got != 1 {
		t.Fatalf("expected deliveries=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "webhook_stock_changes_total", "channel_type", channelType); err != nil {
		t.Fatalf("fetch changes: %v", err)
	} else if got != 3 {
		t.Fatalf("expected changes=3, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "webhook_failures_total", "reason", "invalid_signature"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failures=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "webhook_duration_seconds", "channel_type", channelType); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestWebhookMetricsNilReceiverIsSafe(t *testing.T) {
	var metrics *WebhookMetrics
	metrics.ObserveDuration("woocommerce", time.Second)
	metrics.IncDelivered("woocommerce", "order.created")
	metrics.AddStockChanges("woocommerce", 1)
	metrics.IncFailure("woocommerce", "parse")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
