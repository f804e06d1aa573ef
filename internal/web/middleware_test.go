package web

import (
	"net/http"
	"testing"
)

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl := newRateLimiter(1, 2)

	if !rl.allow("10.0.0.1") || !rl.allow("10.0.0.1") {
		t.Fatal("burst of two should be admitted")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("third call inside the window should be denied")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("keys are limited independently")
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		remote string
		want   string
	}{
		{"10.1.2.3:4444", "10.1.2.3"},
		{"[::1]:8080", "::1"},
		{"no-port", "no-port"},
	}
	for _, tc := range cases {
		r := &http.Request{RemoteAddr: tc.remote}
		if got := clientIP(r); got != tc.want {
			t.Errorf("clientIP(%q) = %q, want %q", tc.remote, got, tc.want)
		}
	}
}
