package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realty_leads_backend/internal/leads/ports"

	"github.com/google/uuid"
)

func TestWebhookRelayPostsJSON(t *testing.T) {
	id := uuid.New()
	var got ports.RelayPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	relay := NewWebhookRelay(srv.URL, time.Second)
	if err := relay.Relay(context.Background(), ports.RelayPayload{LeadID: id, Email: "jane@x.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LeadID != id || got.Email != "jane@x.com" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWebhookRelayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookRelay(srv.URL, time.Second).Relay(context.Background(), ports.RelayPayload{})
	if err == nil {
		t.Fatalf("expected error for 502")
	}
	if relayStatus(err) != "failed" {
		t.Fatalf("expected failed status, got %q", relayStatus(err))
	}
}

func TestWebhookRelayHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := NewWebhookRelay(srv.URL, 5*time.Second).Relay(ctx, ports.RelayPayload{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if relayStatus(err) != "timed_out" {
		t.Fatalf("expected timed_out, got %q", relayStatus(err))
	}
}

func slowServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func TestWebhookRelayDeadlineMatchingTimeoutIsTimedOut(t *testing.T) {
	srv := slowServer(t)

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
		err := NewWebhookRelay(srv.URL, 40*time.Millisecond).Relay(ctx, ports.RelayPayload{})
		cancel()
		if relayStatus(err) != "timed_out" {
			t.Fatalf("attempt %d: expected timed_out, got %q (%v)", i, relayStatus(err), err)
		}
	}
}

func TestWebhookRelayClientTimeoutIsTimedOut(t *testing.T) {
	srv := slowServer(t)

	err := NewWebhookRelay(srv.URL, 20*time.Millisecond).Relay(context.Background(), ports.RelayPayload{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
