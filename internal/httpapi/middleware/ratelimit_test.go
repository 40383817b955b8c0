package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRateLimit_AllowsThenBlocks(t *testing.T) {
	fc := clockwork.NewFakeClock()
	h := rateLimit(fc, 60, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "1.2.3.4:1234"

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("want 200 got %d", rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 429 {
		t.Fatalf("want 429 got %d", rr.Code)
	}

	// other clients have their own bucket
	other := httptest.NewRequest("GET", "/", nil)
	other.Header.Set("X-Forwarded-For", "5.6.7.8, 10.0.0.1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	if rr.Code != 200 {
		t.Fatalf("want 200 for another client got %d", rr.Code)
	}

	fc.Advance(1100 * time.Millisecond)
	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, req)
	if rr2.Code != 200 {
		t.Fatalf("want 200 after refill got %d", rr2.Code)
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	fc := clockwork.NewFakeClock()
	l := newLimiter(fc, 1, 1, time.Minute)
	l.allow("a")
	l.allow("b")
	if l.size() != 2 {
		t.Fatalf("want 2 buckets, got %d", l.size())
	}
	fc.Advance(2 * time.Minute)
	l.allow("c")
	if l.size() != 1 {
		t.Fatalf("idle buckets should be dropped, got %d", l.size())
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "9.9.9.9:4444"
	if got := clientIP(r); got != "9.9.9.9" {
		t.Fatalf("got %q", got)
	}
	r.RemoteAddr = "not-an-addr"
	if got := clientIP(r); got != "not-an-addr" {
		t.Fatalf("got %q", got)
	}
}
