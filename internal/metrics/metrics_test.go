package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveClaimCountsTokens(t *testing.T) {
	before := testutil.ToFloat64(tokensAwarded)
	ObserveClaim("OK", 15, time.Millisecond)
	ObserveClaim("already_consumed", 0, time.Millisecond)

	if got := testutil.ToFloat64(tokensAwarded) - before; got != 15 {
		t.Fatalf("expected 15 tokens awarded, got %v", got)
	}
	if got := testutil.ToFloat64(claimsTotal.WithLabelValues("ok")); got < 1 {
		t.Fatalf("expected normalized ok label to be counted, got %v", got)
	}
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}
