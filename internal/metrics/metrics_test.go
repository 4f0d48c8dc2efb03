package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRecordCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.SnapshotsSent.Inc()
	c.SnapshotsSent.Inc()
	c.SnapshotsReceived.Inc()
	c.OpsRelayed.Add(3)
	c.ConnectedPeers.Set(5)

	if got := testutil.ToFloat64(c.SnapshotsSent); got != 2 {
		t.Fatalf("SnapshotsSent = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.SnapshotsReceived); got != 1 {
		t.Fatalf("SnapshotsReceived = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.OpsRelayed); got != 3 {
		t.Fatalf("OpsRelayed = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.ConnectedPeers); got != 5 {
		t.Fatalf("ConnectedPeers = %v, want 5", got)
	}
}

func TestSnapshotsDroppedIsLabeledByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.SnapshotsDropped.WithLabelValues("duplicate").Inc()
	c.SnapshotsDropped.WithLabelValues("duplicate").Inc()
	c.SnapshotsDropped.WithLabelValues("malformed").Inc()

	if got := testutil.ToFloat64(c.SnapshotsDropped.WithLabelValues("duplicate")); got != 2 {
		t.Fatalf("duplicate count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.SnapshotsDropped.WithLabelValues("malformed")); got != 1 {
		t.Fatalf("malformed count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.SnapshotsDropped.WithLabelValues("out_of_order")); got != 0 {
		t.Fatalf("out_of_order count = %v, want 0 (never incremented)", got)
	}
}

func TestObserveFlushRecordsAnObservation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	before := testutil.CollectAndCount(c.FlushLatency)
	done := c.ObserveFlush(time.Now())
	done()
	after := testutil.CollectAndCount(c.FlushLatency)

	if after <= before {
		t.Fatalf("expected FlushLatency to have recorded an observation: before=%d after=%d", before, after)
	}
}

func TestServerServeReturnsNilAfterShutdown(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := NewServer("127.0.0.1:0", reg, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	// Give the listener a moment to come up before shutting it down.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve returned an error after Shutdown: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
