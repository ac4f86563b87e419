package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"schedula/client/internal/domain"
	"schedula/client/internal/store"
)

const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

type Platform string

const (
	PlatformNative Platform = "native"
	PlatformWeb    Platform = "web"
)

func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformNative, "":
		return PlatformNative, nil
	case PlatformWeb:
		return PlatformWeb, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Store persists the session credentials and the cached user record.
//
// Writes go to the primary store and, on the web platform, are mirrored into
// the fallback store. The two writes are not transactional: a crash between
// them can leave the fallback behind the primary.
type Store struct {
	primary  store.KV
	fallback store.KV
	platform Platform
	log      *slog.Logger
}

func New(primary, fallback store.KV, platform Platform, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	if platform == "" {
		platform = PlatformNative
	}
	return &Store{
		primary:  primary,
		fallback: fallback,
		platform: platform,
		log:      log.With(slog.String("component", "tokenstore")),
	}
}

func (s *Store) mirrored() bool {
	return s.platform == PlatformWeb && s.fallback != nil
}

func (s *Store) SaveTokens(ctx context.Context, access, refresh string) error {
	if err := s.set(ctx, KeyAccessToken, access); err != nil {
		return err
	}
	return s.set(ctx, KeyRefreshToken, refresh)
}

// SetAccessToken replaces only the access token; used after a refresh.
func (s *Store) SetAccessToken(ctx context.Context, access string) error {
	return s.set(ctx, KeyAccessToken, access)
}

func (s *Store) AccessToken(ctx context.Context) string {
	return s.get(ctx, KeyAccessToken)
}

func (s *Store) RefreshToken(ctx context.Context) string {
	return s.get(ctx, KeyRefreshToken)
}

func (s *Store) SaveUser(ctx context.Context, user domain.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return s.set(ctx, KeyUser, string(b))
}

// User returns the cached user record. A corrupt record is treated as absent.
func (s *Store) User(ctx context.Context) (*domain.User, bool) {
	raw := s.get(ctx, KeyUser)
	if raw == "" {
		return nil, false
	}
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.log.Warn("cached user unreadable", slog.Any("err", err))
		return nil, false
	}
	return &u, true
}

// Clear removes tokens and the cached user from every store. Clearing an empty
// store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	keys := []string{KeyAccessToken, KeyRefreshToken, KeyUser}
	err := s.primary.Delete(ctx, keys...)
	if s.mirrored() {
		err = errors.Join(err, s.fallback.Delete(ctx, keys...))
	}
	if err != nil {
		s.log.Error("token clear failed", slog.Any("err", err))
		return fmt.Errorf("clear tokens: %w", err)
	}
	s.log.Debug("tokens cleared")
	return nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if err := s.primary.Set(ctx, key, value); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	if s.mirrored() {
		if err := s.fallback.Set(ctx, key, value); err != nil {
			return fmt.Errorf("mirror %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) string {
	v, err := s.primary.Get(ctx, key)
	if err == nil && v != "" {
		return v
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("token read failed", slog.String("key", key), slog.Any("err", err))
	}
	if !s.mirrored() {
		return ""
	}
	v, err = s.fallback.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("fallback token read failed", slog.String("key", key), slog.Any("err", err))
		}
		return ""
	}
	return v
}
