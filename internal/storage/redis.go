package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"credrelay/internal/domain"
	"credrelay/pkg/platform/sentinel"
)

var resolveDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "credrelay_request_resolve_commit_duration_ms",
	Help:    "Latency of request resolution commits in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const (
	credentialKeyPrefix = "vc:hash:"
	credentialIndexKey  = "vc:index"
	requestKeyPrefix    = "req:id:"
	requestIndexKey     = "req:index"
)

// RedisCredentialStore is the distributed-deployment backend for the wallet
// credential map. Insertion order is preserved in a side list so selection
// stays deterministic.
type RedisCredentialStore struct {
	client *redis.Client
}

func NewRedisCredentialStore(client *redis.Client) *RedisCredentialStore {
	return &RedisCredentialStore{client: client}
}

func (s *RedisCredentialStore) Put(ctx context.Context, cred domain.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	k := credentialKeyPrefix + key(cred.ContentHash)
	// SETNX keeps Put idempotent; the index only grows on first insert.
	created, err := s.client.SetNX(ctx, k, payload, 0).Result()
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	if created {
		if err := s.client.RPush(ctx, credentialIndexKey, k).Err(); err != nil {
			return fmt.Errorf("index credential: %w", err)
		}
	}
	return nil
}

func (s *RedisCredentialStore) Get(ctx context.Context, contentHash string) (domain.Credential, error) {
	raw, err := s.client.Get(ctx, credentialKeyPrefix+key(contentHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Credential{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	var cred domain.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return domain.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

func (s *RedisCredentialStore) List(ctx context.Context) ([]domain.Credential, error) {
	keys, err := s.client.LRange(ctx, credentialIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	out := make([]domain.Credential, 0, len(keys))
	for _, k := range keys {
		raw, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}
		var cred domain.Credential
		if err := json.Unmarshal(raw, &cred); err != nil {
			return nil, fmt.Errorf("decode credential: %w", err)
		}
		out = append(out, cred)
	}
	return out, nil
}

// RedisRequestStore keeps proof requests with a Watch-based optimistic
// transaction for the pending-only resolution commit.
type RedisRequestStore struct {
	client *redis.Client
}

func NewRedisRequestStore(client *redis.Client) *RedisRequestStore {
	return &RedisRequestStore{client: client}
}

func (s *RedisRequestStore) Save(ctx context.Context, req domain.ProofRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	k := requestKeyPrefix + req.ID
	created, err := s.client.SetNX(ctx, k, payload, 0).Result()
	if err != nil {
		return fmt.Errorf("store request: %w", err)
	}
	if created {
		if err := s.client.RPush(ctx, requestIndexKey, k).Err(); err != nil {
			return fmt.Errorf("index request: %w", err)
		}
		return nil
	}
	return s.client.Set(ctx, k, payload, 0).Err()
}

func (s *RedisRequestStore) Get(ctx context.Context, id string) (domain.ProofRequest, error) {
	return s.get(ctx, s.client, id)
}

func (s *RedisRequestStore) get(ctx context.Context, c redis.Cmdable, id string) (domain.ProofRequest, error) {
	raw, err := c.Get(ctx, requestKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ProofRequest{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.ProofRequest{}, fmt.Errorf("get request: %w", err)
	}
	var req domain.ProofRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return domain.ProofRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func (s *RedisRequestStore) ListPending(ctx context.Context) ([]domain.ProofRequest, error) {
	keys, err := s.client.LRange(ctx, requestIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := make([]domain.ProofRequest, 0)
	for _, k := range keys {
		raw, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list requests: %w", err)
		}
		var req domain.ProofRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode request: %w", err)
		}
		if req.Status == domain.StatusPending {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *RedisRequestStore) Resolve(ctx context.Context, id string, status domain.RequestStatus, presentation *domain.Presentation, resolvedAt time.Time) (domain.ProofRequest, error) {
	start := time.Now()
	defer func() {
		resolveDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	k := requestKeyPrefix + id
	var resolved domain.ProofRequest

	for {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			req, err := s.get(ctx, tx, id)
			if err != nil {
				return err
			}
			if req.Status != domain.StatusPending {
				resolved = req
				return sentinel.ErrConflict
			}
			req.Status = status
			req.ResolvedAt = &resolvedAt
			req.Presentation = presentation

			payload, err := json.Marshal(req)
			if err != nil {
				return fmt.Errorf("marshal request: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, payload, 0)
				return nil
			})
			if err == nil {
				resolved = req
			}
			return err
		}, k)

		if errors.Is(err, redis.TxFailedErr) {
			// Lost the race; re-read and report conflict if no longer pending.
			continue
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return resolved, sentinel.ErrConflict
		}
		if err != nil {
			return domain.ProofRequest{}, err
		}
		return resolved, nil
	}
}
