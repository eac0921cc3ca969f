package service

import (
	"context"
	"testing"
	"time"

	"realty_leads_backend/internal/leads/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisGuardFirstWriterWins(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	guard := NewRedisGuard(client, time.Minute)
	key := dedupKey(domain.LeadSubmission{Contact: domain.Contact{Email: "Jane@X.com"}}, domain.CategoryBuyer)

	first, err := guard.Acquire(context.Background(), key)
	if err != nil || !first {
		t.Fatalf("expected first acquire to win, got %v (%v)", first, err)
	}
	again, err := guard.Acquire(context.Background(), key)
	if err != nil || again {
		t.Fatalf("expected second acquire to lose, got %v (%v)", again, err)
	}

	if err := guard.Release(context.Background(), key); err != nil {
		t.Fatalf("release: %v", err)
	}
	released, err := guard.Acquire(context.Background(), key)
	if err != nil || !released {
		t.Fatalf("expected acquire after release to win, got %v (%v)", released, err)
	}

	mr.FastForward(2 * time.Minute)
	later, err := guard.Acquire(context.Background(), key)
	if err != nil || !later {
		t.Fatalf("expected acquire after ttl to win, got %v (%v)", later, err)
	}
}

func TestDedupKey(t *testing.T) {
	sub := func(email, address string) domain.LeadSubmission {
		return domain.LeadSubmission{
			Contact:  domain.Contact{Email: email},
			Property: &domain.PropertyFields{PropertyAddress: address},
		}
	}
	a := dedupKey(sub(" JANE@x.com ", "123 Main St"), domain.CategoryBuyer)
	b := dedupKey(sub("jane@x.com", "123 Main St"), domain.CategoryBuyer)
	if a != b || a == "" {
		t.Fatalf("expected case-insensitive key, got %q and %q", a, b)
	}
	if c := dedupKey(sub("jane@x.com", "123 Main St"), domain.CategoryAgent); c == a {
		t.Fatalf("expected category to change the key")
	}
	if d := dedupKey(sub("jane@x.com", "999 Other Ave"), domain.CategoryBuyer); d == a {
		t.Fatalf("expected property fields to change the key")
	}
	if k := dedupKey(domain.LeadSubmission{}, domain.CategoryAgent); k != "" {
		t.Fatalf("expected empty key without a channel, got %q", k)
	}
}
