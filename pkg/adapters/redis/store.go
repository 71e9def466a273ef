package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "arbor:instance:"

// farFuture is the index score of instances without TTL (2100-01-01).
const farFuture = 4102444800

// Store implements ports.InstanceStore using Redis.
// Instances are stored as JSON, and a sorted set indexes the attached entities.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for instances. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for instances.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(entity domain.EntityID) string {
	return s.prefix + "i:" + string(entity)
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the instance to Redis.
func (s *Store) Save(ctx context.Context, inst *machine.Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(inst.Entity), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: string(inst.Entity),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the instance from Redis.
func (s *Store) Load(ctx context.Context, entity domain.EntityID) (*machine.Instance, error) {
	val, err := s.client.Get(ctx, s.key(entity)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var inst machine.Instance
	if err := json.Unmarshal(val, &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %q: %w", entity, err)
	}
	return &inst, nil
}

// Delete removes the instance.
func (s *Store) Delete(ctx context.Context, entity domain.EntityID) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(entity))
	pipe.ZRem(ctx, s.indexKey(), string(entity))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns the attached entities, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]domain.EntityID, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("(%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired instances: %w", err)
	}

	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	entities := make([]domain.EntityID, len(members))
	for i, m := range members {
		entities[i] = domain.EntityID(m)
	}
	return entities, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
