package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/storage"
)

// DefaultKey is the storage key of the shared cart.
const DefaultKey = "ticketCart"

// KeyFor returns the storage key for a client-scoped cart. An empty id maps to base.
func KeyFor(base, cartID string) string {
	if cartID == "" {
		return base
	}
	return base + ":" + cartID
}

// keyLocks hands out one mutex per storage key so stores bound to the same key
// serialize their read-modify-write cycles.
var keyLocks = struct {
	sync.Mutex
	m map[string]*sync.Mutex
}{m: make(map[string]*sync.Mutex)}

func lockFor(key string) *sync.Mutex {
	keyLocks.Lock()
	defer keyLocks.Unlock()

	mu, ok := keyLocks.m[key]
	if !ok {
		mu = &sync.Mutex{}
		keyLocks.m[key] = mu
	}
	return mu
}

// Store persists one Cart document under a single key. Every mutation rewrites the
// whole document.
type Store struct {
	backend storage.Backend
	key     string
	log     *logger.Logger
	mu      *sync.Mutex
}

func NewStore(backend storage.Backend, key string, log *logger.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		backend: backend,
		key:     key,
		log:     log,
		mu:      lockFor(key),
	}
}

func (s *Store) Key() string {
	return s.key
}

// Load returns a snapshot of the persisted cart. A missing or unparsable document is an
// empty cart; only backend failures are returned.
func (s *Store) Load(ctx context.Context) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (*Cart, error) {
	raw, err := s.backend.Read(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return New(), nil
	}
	if err != nil {
		s.log.Error("CART", fmt.Sprintf("Failed to read cart %s: %v", s.key, err))
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	return s.decode(raw), nil
}

func (s *Store) decode(raw []byte) *Cart {
	c := New()
	if raw == nil {
		return c
	}
	if err := c.UnmarshalJSON(raw); err != nil {
		s.log.Warn("CART", fmt.Sprintf("Discarding unreadable cart %s: %v", s.key, err))
		return New()
	}
	return c
}

// Get returns the stored quantity, 0 when absent.
func (s *Store) Get(ctx context.Context, eventID, ticketID int) (int, error) {
	c, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return c.Quantity(eventID, ticketID), nil
}

// Set upserts the quantity, or removes the entry when quantity <= 0.
func (s *Store) Set(ctx context.Context, eventID, ticketID, quantity int) error {
	_, err := s.Update(ctx, eventID, ticketID, func(int) int { return quantity })
	return err
}

// Update replaces the stored quantity with step(current) in a single read-modify-write
// cycle and returns the quantity now stored. Backends implementing storage.Updater run
// the cycle atomically against other processes as well.
func (s *Store) Update(ctx context.Context, eventID, ticketID int, step func(current int) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result int
	var changed bool
	apply := func(c *Cart) ([]byte, error) {
		current := c.Quantity(eventID, ticketID)
		c.Set(eventID, ticketID, step(current))
		result = c.Quantity(eventID, ticketID)
		changed = result != current
		if !changed {
			return nil, nil
		}
		return c.MarshalJSON()
	}

	var err error
	if u, ok := s.backend.(storage.Updater); ok {
		err = u.Update(ctx, s.key, func(raw []byte) ([]byte, error) {
			return apply(s.decode(raw))
		})
	} else {
		err = s.rewrite(ctx, apply)
	}
	if err != nil {
		s.log.Error("CART", fmt.Sprintf("Failed to update cart %s: %v", s.key, err))
		return 0, fmt.Errorf("failed to update cart: %w", err)
	}

	if changed {
		s.log.LogCart("SET", s.key, fmt.Sprintf("event %d ticket %d -> %d", eventID, ticketID, result))
	}
	return result, nil
}

// rewrite is the load-apply-write cycle for backends without atomic updates. The
// caller holds s.mu.
func (s *Store) rewrite(ctx context.Context, apply func(*Cart) ([]byte, error)) error {
	c, err := s.load(ctx)
	if err != nil {
		return err
	}
	raw, err := apply(c)
	if err != nil || raw == nil {
		return err
	}
	return s.backend.Write(ctx, s.key, raw)
}

// Clear removes the whole document.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.log.Error("CART", fmt.Sprintf("Failed to clear cart %s: %v", s.key, err))
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.log.LogCart("CLEAR", s.key, "cart cleared")
	return nil
}
