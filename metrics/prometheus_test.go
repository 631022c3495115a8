package metrics

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	r := NewRegistry()
	r.Counter("claim.accepted").Add(3)
	r.Gauge("claim.distributors").Set(2)
	r.Histogram("claim.latency_us").Observe(10)
	r.Histogram("claim.latency_us").Observe(30)

	c := NewCollector(r, "merkledrop")
	if n := testutil.CollectAndCount(c); n != 3 {
		t.Fatalf("collected %d metrics, want 3", n)
	}
	want := `
# HELP merkledrop_claim_accepted claim.accepted
# TYPE merkledrop_claim_accepted counter
merkledrop_claim_accepted 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "merkledrop_claim_accepted"); err != nil {
		t.Fatal(err)
	}
}

func TestWriteText(t *testing.T) {
	r := NewRegistry()
	r.Counter("merkle.builds").Inc()
	r.Histogram("merkle.build_us").Observe(5)

	var buf bytes.Buffer
	if err := WriteText(&buf, r, "merkledrop"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"merkledrop_merkle_builds 1",
		"merkledrop_merkle_build_us_count 1",
		"merkledrop_merkle_build_us_sum 5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "merkledrop_merkle_build_us") > strings.Index(out, "merkledrop_merkle_builds") {
		t.Error("families should be sorted by name")
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.Gauge("claim.distributors").Set(1)
	srv := httptest.NewServer(Handler(r, "merkledrop"))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || !strings.Contains(string(body), "merkledrop_claim_distributors 1") {
		t.Fatalf("status %d body:\n%s", resp.StatusCode, body)
	}
}
