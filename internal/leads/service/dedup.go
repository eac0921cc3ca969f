package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"realty_leads_backend/internal/leads/domain"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "leads:submit:"

// DuplicateGuard reports whether a submission key is seen for the first time within its window.
// Release forgets a key whose submission was not stored, so a retry goes through.
type DuplicateGuard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisGuard uses SET NX with a TTL, so the first writer wins across API instances.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, dedupKeyPrefix+key, time.Now().UTC().Unix(), g.ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, dedupKeyPrefix+key).Err()
}

type submissionFingerprint struct {
	Email    string                 `json:"e"`
	Phone    string                 `json:"p"`
	Name     string                 `json:"n"`
	Category domain.LeadCategory    `json:"c"`
	Source   string                 `json:"s"`
	Message  string                 `json:"m"`
	Property *domain.PropertyFields `json:"pf,omitempty"`
	Agent    *domain.AgentFields    `json:"af,omitempty"`
	Mortgage *domain.MortgageFields `json:"mf,omitempty"`
}

// dedupKey hashes the whole normalized submission so raw emails never land in redis
// and only a repeat of the same form counts as a duplicate.
// It returns "" when the submission carries no channel to key on.
func dedupKey(sub domain.LeadSubmission, category domain.LeadCategory) string {
	fp := submissionFingerprint{
		Email:    strings.ToLower(strings.TrimSpace(sub.Contact.Email)),
		Phone:    strings.TrimSpace(sub.Contact.Phone),
		Name:     strings.ToLower(sub.Contact.FullName()),
		Category: category,
		Source:   strings.TrimSpace(sub.Source),
		Message:  strings.TrimSpace(sub.Message),
		Property: sub.Property,
		Agent:    sub.Agent,
		Mortgage: sub.Mortgage,
	}
	if fp.Email == "" && fp.Phone == "" {
		return ""
	}
	raw, err := json.Marshal(fp)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}
