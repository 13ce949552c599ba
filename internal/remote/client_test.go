package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(maxRetries int) *Client {
	c := NewClient(5*time.Second, maxRetries, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

func TestChildrenURL(t *testing.T) {
	tests := []struct {
		source  string
		want    string
		wantErr bool
	}{
		{"http://localhost:1999/ParenT", "http://localhost:1999/api/children?page=ParenT", false},
		{"https://wiki.example.com/FrontPage.SubPage/", "https://wiki.example.com/api/children?page=FrontPage.SubPage", false},
		{"http://localhost:1999", "http://localhost:1999/api/children?page=", false},
		{"ftp://host/ParenT", "", true},
	}
	for _, tt := range tests {
		got, err := ChildrenURL(tt.source)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ChildrenURL(%q): expected error", tt.source)
			}
			continue
		}
		if err != nil {
			t.Errorf("ChildrenURL(%q): unexpected error: %v", tt.source, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ChildrenURL(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestResolveChildren_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ChildrenPath || r.URL.Query().Get("page") != "ParenT" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(ChildrenResponse{
			Page: "ParenT",
			Children: []ChildEntry{
				{Name: "ChildOne", Path: "ParenT.ChildOne"},
				{Name: "ChildTwo", Path: "ParenT.ChildTwo"},
			},
		})
	}))
	defer srv.Close()

	c := testClient(0)
	names, err := c.ResolveChildren(context.Background(), srv.URL+"/ParenT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(names, ",") != "ChildOne,ChildTwo" {
		t.Errorf("unexpected children %v", names)
	}
	if snap := c.Stats.Snapshot(); snap.Fetches != 1 || snap.Failures != 0 {
		t.Errorf("expected one successful fetch recorded, got %+v", snap)
	}
}

func TestResolveChildren_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"page":"ParenT","children":[{"name":"ChildOne"}]}`))
	}))
	defer srv.Close()

	c := testClient(3)
	names, err := c.ResolveChildren(context.Background(), srv.URL+"/ParenT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 1 || names[0] != "ChildOne" {
		t.Errorf("unexpected children %v", names)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	if snap := c.Stats.Snapshot(); snap.Fetches != 3 || snap.Failures != 2 {
		t.Errorf("expected 3 fetches with 2 failures, got %+v", snap)
	}
}

func TestResolveChildren_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(2).ResolveChildren(context.Background(), srv.URL+"/ParenT")
	if !IsRetryable(err) {
		t.Fatalf("expected a retryable error after giving up, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 1 call plus 2 retries, got %d", calls.Load())
	}
}

func TestResolveChildren_NotFoundIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"page not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(3).ResolveChildren(context.Background(), srv.URL+"/MissingPage")
	if err == nil {
		t.Fatal("expected an error")
	}
	if IsRetryable(err) {
		t.Errorf("404 should not be retryable: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestResolveChildren_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(5)
	c.backoff = func(int) time.Duration { return time.Hour }
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ResolveChildren(ctx, srv.URL+"/ParenT")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestStats_Snapshot(t *testing.T) {
	s := NewStats(time.Hour)
	if snap := s.Snapshot(); snap.Fetches != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
	for _, ms := range []int64{10, 20, 30, 40} {
		s.Record(ms, false)
	}
	s.Record(-5, true)

	snap := s.Snapshot()
	if snap.Fetches != 5 || snap.Failures != 1 {
		t.Errorf("unexpected counts %+v", snap)
	}
	if snap.MinMs != 0 || snap.MaxMs != 40 {
		t.Errorf("expected min 0 and max 40, got %d and %d", snap.MinMs, snap.MaxMs)
	}
	if snap.P50Ms != 20 {
		t.Errorf("expected p50 20, got %v", snap.P50Ms)
	}
}

func TestResolveChildren_SkipsInvalidNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"children":[{"name":"ChildOne"},{"name":"</i><script>alert(1)</script>"},{"name":"ChildTwo"}]}`)
	}))
	defer srv.Close()

	names, err := testClient(0).ResolveChildren(context.Background(), srv.URL+"/ParenT")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := strings.Join(names, ","); got != "ChildOne,ChildTwo" {
		t.Errorf("expected only page names, got %q", got)
	}
}

func TestResolveChildren_OversizedListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"page":"`+strings.Repeat("x", maxListingBytes)+`","children":[{"name":"ChildOne"}]}`)
	}))
	defer srv.Close()

	if _, err := testClient(0).ResolveChildren(context.Background(), srv.URL+"/ParenT"); err == nil {
		t.Fatal("expected error for listing over the size limit")
	}
}
