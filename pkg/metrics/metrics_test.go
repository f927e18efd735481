package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIdempotent(t *testing.T) {
	Register()
	Register()
}

func TestRecordInvocation(t *testing.T) {
	c := invocations.WithLabelValues("GET", "completed", "200")
	before := testutil.ToFloat64(c)
	RecordInvocation("GET", "completed", 200, 15*time.Millisecond)
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Fatalf("expected counter %v got %v", before+1, got)
	}
}

func TestInflight(t *testing.T) {
	base := testutil.ToFloat64(inflight)
	done := InvocationStarted()
	if testutil.ToFloat64(inflight) != base+1 {
		t.Fatalf("inflight not incremented")
	}
	done()
	if testutil.ToFloat64(inflight) != base {
		t.Fatalf("inflight not decremented")
	}
}

func TestRecordResolve(t *testing.T) {
	ok := resolutions.WithLabelValues("artifact:test", "ok")
	failed := resolutions.WithLabelValues("artifact:test", "error")
	RecordResolve("artifact:test", nil, time.Second)
	RecordResolve("artifact:test", errors.New("boom"), time.Second)
	if testutil.ToFloat64(ok) != 1 || testutil.ToFloat64(failed) != 1 {
		t.Fatalf("unexpected counts ok=%v error=%v", testutil.ToFloat64(ok), testutil.ToFloat64(failed))
	}
}
