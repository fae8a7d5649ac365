// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	RetryBaseDelay = 1 * time.Millisecond
}

// scriptedDoer answers each call with the next status in its script and
// repeats the last one once the script runs out.
type scriptedDoer struct {
	statuses   []int
	retryAfter string
	err        error
	calls      int
	bodies     []*trackedBody
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	status := d.statuses[min(d.calls, len(d.statuses))-1]
	body := &trackedBody{Reader: strings.NewReader("body")}
	d.bodies = append(d.bodies, body)
	resp := &http.Response{StatusCode: status, Header: http.Header{}, Body: body, Request: req}
	if status == http.StatusTooManyRequests && d.retryAfter != "" {
		resp.Header.Set("Retry-After", d.retryAfter)
	}
	return resp, nil
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://eutils.example.org/efetch", nil)
	require.NoError(t, err)
	return req
}

func TestDoWithRetry_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		maxRetries int
		wantStatus int
		wantCalls  int
	}{
		{"immediate success", []int{200}, 5, 200, 1},
		{"retries then succeeds", []int{429, 429, 200}, 5, 200, 3},
		{"exhausts retries", []int{429}, 3, 429, 4},
		{"default max retries", []int{429}, 0, 429, 6},
		{"server error passes through", []int{500}, 5, 500, 1},
		{"not found passes through", []int{404}, 5, 404, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &scriptedDoer{statuses: tt.statuses}
			resp, err := DoWithRetry(context.Background(), d, newRequest(t), tt.maxRetries)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, d.calls)
			for _, b := range d.bodies[:len(d.bodies)-1] {
				assert.True(t, b.closed, "rate-limited bodies are closed before retrying")
			}
		})
	}
}

func TestDoWithRetry_TransportError(t *testing.T) {
	boom := errors.New("connection reset")
	d := &scriptedDoer{err: boom}

	_, err := DoWithRetry(context.Background(), d, newRequest(t), 5)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, d.calls)
}

func TestDoWithRetry_RetryAfter(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		minWait time.Duration
		maxWait time.Duration
	}{
		{"seconds header lengthens the wait", "1", time.Second, 5 * time.Second},
		{"zero header is ignored", "0", 0, 500 * time.Millisecond},
		{"date header is ignored", "Wed, 21 Oct 2015 07:28:00 GMT", 0, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &scriptedDoer{statuses: []int{429, 200}, retryAfter: tt.header}

			start := time.Now()
			resp, err := DoWithRetry(context.Background(), d, newRequest(t), 5)
			elapsed := time.Since(start)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, 2, d.calls)
			assert.GreaterOrEqual(t, elapsed, tt.minWait)
			assert.Less(t, elapsed, tt.maxWait)
		})
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-2", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, retryAfter(resp))
		})
	}
}

func TestDoWithRetry_WaitRunsBeforeEveryAttempt(t *testing.T) {
	d := &scriptedDoer{statuses: []int{429, 429, 200}}
	var waits int
	wait := func(context.Context) error {
		waits++
		return nil
	}

	resp, err := doWithRetry(context.Background(), d, newRequest(t), 5, wait, slog.Default())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 3, waits)
	assert.Equal(t, 3, d.calls)
}

func TestDoWithRetry_WaitErrorStops(t *testing.T) {
	d := &scriptedDoer{statuses: []int{200}}
	limited := errors.New("limiter closed")

	_, err := doWithRetry(context.Background(), d, newRequest(t), 5,
		func(context.Context) error { return limited }, slog.Default())
	assert.ErrorIs(t, err, limited)
	assert.Zero(t, d.calls)
}

func TestDoWithRetry_ContextCancelled(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	old := RetryBaseDelay
	RetryBaseDelay = 500 * time.Millisecond
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(ctx, ts.Client(), req, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
