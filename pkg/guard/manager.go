package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates instance access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.InstanceStore

	// mu guards locks.
	mu    sync.Mutex
	locks map[domain.EntityID]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given instance store.
func NewManager(store ports.InstanceStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[domain.EntityID]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(entity) after unlocking.
func (m *Manager) acquire(entity domain.EntityID) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[entity]
	if !exists {
		entry = &lockEntry{}
		m.locks[entity] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(entity domain.EntityID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[entity]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, entity)
	}
}

// activeLocks reports how many entities currently hold a lock entry.
func (m *Manager) activeLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock executes a function while holding the lock for the entity.
func (m *Manager) WithLock(ctx context.Context, entity domain.EntityID, fn func(context.Context) error) error {
	entry := m.acquire(entity)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(entity)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, string(entity), m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"entity", entity,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves an instance under the entity lock.
func (m *Manager) Load(ctx context.Context, entity domain.EntityID) (*machine.Instance, error) {
	var inst *machine.Instance
	err := m.WithLock(ctx, entity, func(ctx context.Context) error {
		var err error
		inst, err = m.store.Load(ctx, entity)
		return err
	})
	return inst, err
}

// Create persists a fresh instance, failing with domain.ErrAlreadyAttached
// when the entity already has one.
func (m *Manager) Create(ctx context.Context, inst *machine.Instance) error {
	return m.WithLock(ctx, inst.Entity, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, inst.Entity)
		if err == nil {
			return fmt.Errorf("entity %q: %w", inst.Entity, domain.ErrAlreadyAttached)
		}
		if !errors.Is(err, domain.ErrInstanceNotFound) {
			return fmt.Errorf("failed to check instance existence: %w", err)
		}
		if err := m.store.Save(ctx, inst); err != nil {
			return fmt.Errorf("failed to initialize instance: %w", err)
		}
		return nil
	})
}

// Update loads the instance, hands it to fn and saves it when fn succeeds,
// all under the entity lock. fn works on a private copy: if it fails,
// nothing is written.
func (m *Manager) Update(ctx context.Context, entity domain.EntityID, fn func(context.Context, *machine.Instance) error) error {
	return m.WithLock(ctx, entity, func(ctx context.Context) error {
		inst, err := m.store.Load(ctx, entity)
		if err != nil {
			return err
		}
		if err := fn(ctx, inst); err != nil {
			return err
		}
		return m.store.Save(ctx, inst)
	})
}

// Delete removes the instance from the store.
func (m *Manager) Delete(ctx context.Context, entity domain.EntityID) error {
	return m.WithLock(ctx, entity, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, entity); err != nil {
			return err
		}
		return m.store.Delete(ctx, entity)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]domain.EntityID, error) {
	return m.store.List(ctx)
}

// Store returns the underlying instance store.
func (m *Manager) Store() ports.InstanceStore {
	return m.store
}
