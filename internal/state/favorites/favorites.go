package favorites

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"schedula/client/internal/domain"
	"schedula/client/internal/state/auth"
)

var ErrNotLoggedIn = errors.New("favorites require an active session")

type Session interface {
	IsLoggedIn() bool
}

type Resource interface {
	List(ctx context.Context) ([]domain.FavoriteEntry, error)
	Toggle(ctx context.Context, businessID string) (bool, error)
}

// Phase tracks where the last toggle of one business stands.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseConfirmed
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Container holds the session's favorites. ids always equals the set of entry
// ids after a completed Load; between a toggle and its resync ids may run
// ahead of entries.
//
// Loads are not sequenced: whichever response lands last replaces the state.
type Container struct {
	session Session
	api     Resource
	log     *slog.Logger

	mu      sync.Mutex
	ids     map[string]struct{}
	entries []domain.FavoriteEntry
	lastErr error
	phases  map[string]Phase
}

func New(session Session, api Resource, log *slog.Logger) *Container {
	if log == nil {
		log = slog.Default()
	}
	return &Container{
		session: session,
		api:     api,
		log:     log.With(slog.String("component", "favorites")),
		ids:     make(map[string]struct{}),
		phases:  make(map[string]Phase),
	}
}

// Load replaces the favorites wholesale from the backend. Without a session it
// empties the container and makes no call.
func (c *Container) Load(ctx context.Context) error {
	err := c.load(ctx)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
	}
	return err
}

func (c *Container) load(ctx context.Context) error {
	if !c.session.IsLoggedIn() {
		c.mu.Lock()
		c.ids = make(map[string]struct{})
		c.entries = nil
		c.mu.Unlock()
		return nil
	}

	list, err := c.api.List(ctx)
	if err != nil {
		c.log.Warn("favorites load failed", slog.Any("err", err))
		return err
	}

	ids := make(map[string]struct{}, len(list))
	entries := make([]domain.FavoriteEntry, 0, len(list))
	for _, e := range list {
		if _, dup := ids[e.ID]; dup {
			continue
		}
		ids[e.ID] = struct{}{}
		entries = append(entries, e)
	}

	c.mu.Lock()
	c.ids = ids
	c.entries = entries
	c.mu.Unlock()
	return nil
}

func (c *Container) IsFavorite(businessID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[businessID]
	return ok
}

// Toggle flips businessID optimistically, asks the backend to do the same and
// then resyncs. A failed toggle rolls the local change back, records the error
// and still resyncs, since the backend may have applied it anyway.
func (c *Container) Toggle(ctx context.Context, businessID string) error {
	if !c.session.IsLoggedIn() {
		c.log.Warn("toggle ignored without session", slog.String("business_id", businessID))
		return ErrNotLoggedIn
	}

	c.mu.Lock()
	_, wasFavorite := c.ids[businessID]
	removedAt := -1
	var removed domain.FavoriteEntry
	if wasFavorite {
		delete(c.ids, businessID)
		removedAt, removed = c.removeEntryLocked(businessID)
	} else {
		c.ids[businessID] = struct{}{}
	}
	c.phases[businessID] = PhasePending
	c.mu.Unlock()

	isFavorite, err := c.api.Toggle(ctx, businessID)
	if err != nil {
		c.log.Warn("favorite toggle failed; rolling back", slog.String("business_id", businessID), slog.Any("err", err))
		c.mu.Lock()
		if wasFavorite {
			c.ids[businessID] = struct{}{}
			if removedAt >= 0 {
				c.insertEntryLocked(removedAt, removed)
			}
		} else {
			delete(c.ids, businessID)
		}
		c.phases[businessID] = PhaseRolledBack
		c.lastErr = err
		c.mu.Unlock()

		if loadErr := c.load(ctx); loadErr != nil {
			c.log.Warn("resync after failed toggle failed", slog.Any("err", loadErr))
		}
		return err
	}

	c.mu.Lock()
	if isFavorite {
		c.ids[businessID] = struct{}{}
	} else {
		delete(c.ids, businessID)
		c.removeEntryLocked(businessID)
	}
	c.phases[businessID] = PhaseConfirmed
	c.lastErr = nil
	c.mu.Unlock()

	if err := c.Load(ctx); err != nil {
		c.log.Warn("resync after toggle failed", slog.Any("err", err))
	}
	return nil
}

// IDs returns the favorite business ids in sorted order.
func (c *Container) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Entries returns a copy of the favorites in backend order.
func (c *Container) Entries() []domain.FavoriteEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.FavoriteEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// LastError is the most recent toggle or load failure, cleared by a successful
// toggle.
func (c *Container) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Container) Phase(businessID string) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phases[businessID]
}

func (c *Container) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = make(map[string]struct{})
	c.entries = nil
	c.lastErr = nil
	c.phases = make(map[string]Phase)
}

// BindAuth follows the auth container: a login loads favorites, a logout
// resets them. The returned func detaches the binding.
func (c *Container) BindAuth(ctx context.Context, a *auth.Container) func() {
	return a.Subscribe(func(s auth.State) {
		if !s.LoggedIn {
			c.Reset()
			return
		}
		if err := c.Load(ctx); err != nil {
			c.log.Warn("favorites load after login failed", slog.Any("err", err))
		}
	})
}

func (c *Container) removeEntryLocked(businessID string) (int, domain.FavoriteEntry) {
	for i, e := range c.entries {
		if e.ID == businessID {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			return i, e
		}
	}
	return -1, domain.FavoriteEntry{}
}

func (c *Container) insertEntryLocked(at int, e domain.FavoriteEntry) {
	for _, existing := range c.entries {
		if existing.ID == e.ID {
			return
		}
	}
	if at > len(c.entries) {
		at = len(c.entries)
	}
	c.entries = append(c.entries[:at:at], append([]domain.FavoriteEntry{e}, c.entries[at:]...)...)
}
