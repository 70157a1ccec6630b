package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExpvarAggregates(t *testing.T) {
	rec := NewExpvar("")
	ctx := context.Background()
	rec.Observe(ctx, "save", true, 2*time.Millisecond)
	rec.Observe(ctx, "save", false, 3*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	snap := rec.Snapshot()
	if snap.DurationsMS["save"] != 5 {
		t.Fatalf("expected 5ms total, got %v", snap.DurationsMS["save"])
	}
	if snap.Results["save"]["success"] != 1 || snap.Results["save"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("empty operation must be ignored: %+v", snap.Results)
	}
	if !strings.HasPrefix(rec.Name(), "chainstate_persistence_") {
		t.Fatalf("unexpected generated name %s", rec.Name())
	}
}

func TestPrometheusCounts(t *testing.T) {
	rec := NewPrometheus("test")
	ctx := context.Background()
	rec.Observe(ctx, "load", true, time.Millisecond)
	rec.Observe(ctx, "load", true, time.Millisecond)
	rec.Observe(ctx, "load", false, time.Millisecond)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`test_operations_total{operation="load",status="error"} 1`,
		`test_operations_total{operation="load",status="success"} 2`,
		`test_operation_duration_seconds_count{operation="load"} 3`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("exposition missing %s:\n%s", want, body)
		}
	}
}

type captured struct {
	ops     []string
	success []bool
}

func (c *captured) Observe(_ context.Context, op string, ok bool, _ time.Duration) {
	c.ops = append(c.ops, op)
	c.success = append(c.success, ok)
}

func TestSinceAndMulti(t *testing.T) {
	a, b := &captured{}, &captured{}
	m := Multi{a, nil, b}
	func() (err error) {
		defer Since(context.Background(), m, "delete", time.Now(), &err)
		return errors.New("boom")
	}()
	Since(context.Background(), nil, "noop", time.Now(), nil)
	if len(a.ops) != 1 || a.ops[0] != "delete" || a.success[0] {
		t.Fatalf("unexpected observation %+v", a)
	}
	if len(b.ops) != 1 {
		t.Fatalf("multi did not fan out: %+v", b)
	}
}
