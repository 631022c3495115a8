package node

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestNodeServesMetrics(t *testing.T) {
	dir := t.TempDir()
	publish(t, dir)
	cfg := testNodeConfig(dir)
	cfg.MetricsAddr = "127.0.0.1:0"

	n, err := New(cfg, fundedLedger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr := n.MetricsAddr()
	if addr == "" {
		t.Fatal("metrics endpoint not started")
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "merkledrop_claim_distributors") {
		t.Fatalf("status %d body:\n%s", resp.StatusCode, body)
	}

	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := http.Get("http://" + addr + "/metrics"); err == nil {
		t.Fatal("metrics endpoint still serving after Close")
	}
}

func TestNodeMetricsDisabledByDefault(t *testing.T) {
	dir := t.TempDir()
	publish(t, dir)
	n, err := New(testNodeConfig(dir), fundedLedger())
	if err != nil {
		t.Fatal(err)
	}
	defer n.Close()
	if n.MetricsAddr() != "" {
		t.Fatalf("MetricsAddr = %q, want empty", n.MetricsAddr())
	}
}

func TestNodeMetricsBadAddr(t *testing.T) {
	dir := t.TempDir()
	publish(t, dir)
	cfg := testNodeConfig(dir)
	cfg.MetricsAddr = "256.0.0.1:bad"
	if _, err := New(cfg, fundedLedger()); err == nil {
		t.Fatal("expected listener error")
	}
}
