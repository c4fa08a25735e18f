package spotify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string, maxRetries int) *Client {
	return NewClient(http.DefaultClient, url,
		WithRetry(maxRetries, time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestClientGetRetries(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		maxRetries   int
		wantStatus   int
		wantAttempts int32
		wantCode     int
	}{
		{
			name:         "503 twice then ok",
			statuses:     []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK},
			maxRetries:   3,
			wantStatus:   http.StatusOK,
			wantAttempts: 3,
		},
		{
			name:         "429 exhausts attempts",
			statuses:     []int{http.StatusTooManyRequests},
			maxRetries:   2,
			wantAttempts: 2,
			wantCode:     http.StatusTooManyRequests,
		},
		{
			name:         "400 is not retried",
			statuses:     []int{http.StatusBadRequest},
			maxRetries:   3,
			wantStatus:   http.StatusBadRequest,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(attempts.Add(1))
				status := tt.statuses[len(tt.statuses)-1]
				if n <= len(tt.statuses) {
					status = tt.statuses[n-1]
				}
				w.WriteHeader(status)
			}))
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/playlists/x/tracks", nil)
			if err != nil {
				t.Fatalf("create request: %v", err)
			}
			resp, err := newTestClient(ts.URL, tt.maxRetries).get(req)
			if tt.wantCode != 0 {
				var se *StatusError
				if !errors.As(err, &se) || se.Code != tt.wantCode {
					t.Fatalf("expected StatusError %d, got %v", tt.wantCode, err)
				}
				if se.Path != "/v1/playlists/x/tracks" {
					t.Fatalf("path: got %q", se.Path)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				defer resp.Body.Close()
				if resp.StatusCode != tt.wantStatus {
					t.Fatalf("status: got %d, want %d", resp.StatusCode, tt.wantStatus)
				}
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Fatalf("attempts: got %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestClientGetCanceledDuringBackoff(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	start := time.Now()
	_, err = newTestClient(ts.URL, 3).get(req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("backoff ignored cancellation")
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{"-1", 0},
		{"soon", 0},
		{time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.in); got != tt.want {
			t.Fatalf("retryAfter(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClientDelay(t *testing.T) {
	c := newTestClient("", 3)
	if got := c.delay(2, 0); got != 4*time.Millisecond {
		t.Fatalf("backoff: got %v", got)
	}
	if got := c.delay(0, time.Hour); got != maxRetryAfter {
		t.Fatalf("retry-after cap: got %v", got)
	}
}
