package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"schedula/client/internal/apiclient"
	"schedula/client/internal/domain"
	"schedula/client/internal/service/account"
	"schedula/client/internal/tokenstore"
)

const (
	GenericLoginFailure    = "Unable to log in. Please check your details and try again."
	GenericRegisterFailure = "Unable to create your account. Please try again."
	sessionNotSaved        = "Signed in, but the session could not be saved on this device."
)

// Error is a login or registration failure carrying a reason fit for display.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Accounts interface {
	Login(ctx context.Context, email, password string) (account.AuthResult, error)
	Register(ctx context.Context, in account.RegisterInput) (account.AuthResult, error)
	Me(ctx context.Context) (domain.User, error)
}

type Tokens interface {
	SaveTokens(ctx context.Context, access, refresh string) error
	AccessToken(ctx context.Context) string
	RefreshToken(ctx context.Context) string
	SaveUser(ctx context.Context, user domain.User) error
	User(ctx context.Context) (*domain.User, bool)
	Clear(ctx context.Context) error
}

type State struct {
	LoggedIn bool         `json:"logged_in"`
	User     *domain.User `json:"user,omitempty"`
}

// Container owns the process-wide session state. Listeners are notified after
// every transition, outside the lock.
type Container struct {
	accounts Accounts
	tokens   Tokens
	log      *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

func New(accounts Accounts, tokens Tokens, log *slog.Logger) *Container {
	if log == nil {
		log = slog.Default()
	}
	return &Container{
		accounts:  accounts,
		tokens:    tokens,
		log:       log.With(slog.String("component", "auth")),
		now:       time.Now,
		listeners: make(map[int]func(State)),
	}
}

// Load restores the persisted session at startup. A half-present token pair
// is cleared and treated as logged out.
func (c *Container) Load(ctx context.Context) error {
	session := domain.Session{
		AccessToken:  c.tokens.AccessToken(ctx),
		RefreshToken: c.tokens.RefreshToken(ctx),
	}
	if !session.Valid() {
		if session.AccessToken != "" || session.RefreshToken != "" {
			c.log.Warn("partial session found; clearing")
			if err := c.tokens.Clear(ctx); err != nil {
				c.log.Error("clear partial session", slog.Any("err", err))
			}
		}
		c.set(State{})
		return nil
	}

	if claims, err := tokenstore.InspectAccessToken(session.AccessToken); err == nil {
		if claims.Expired(c.now()) {
			c.log.Info("stored access token expired; next request will refresh", slog.String("user_id", claims.UserID))
		}
	} else {
		c.log.Debug("access token not inspectable", slog.Any("err", err))
	}

	user, ok := c.tokens.User(ctx)
	if !ok {
		me, err := c.accounts.Me(ctx)
		switch {
		case errors.Is(err, apiclient.ErrUnauthorized):
			c.log.Info("stored session rejected by backend")
			if clearErr := c.tokens.Clear(ctx); clearErr != nil {
				c.log.Error("clear rejected session", slog.Any("err", clearErr))
			}
			c.set(State{})
			return nil
		case err != nil:
			c.log.Warn("profile fetch failed; continuing without user", slog.Any("err", err))
		default:
			user = &me
			c.cacheUser(ctx, me)
		}
	}

	c.set(State{LoggedIn: true, User: user})
	return nil
}

func (c *Container) Login(ctx context.Context, email, password string) error {
	res, err := c.accounts.Login(ctx, email, password)
	if err != nil {
		c.log.Info("login failed", slog.Any("err", err))
		return &Error{Reason: apiclient.MessageOr(err, GenericLoginFailure), Err: err}
	}
	return c.establish(ctx, res)
}

func (c *Container) Register(ctx context.Context, in account.RegisterInput) error {
	res, err := c.accounts.Register(ctx, in)
	if err != nil {
		c.log.Info("registration failed", slog.Any("err", err))
		return &Error{Reason: apiclient.MessageOr(err, GenericRegisterFailure), Err: err}
	}
	return c.establish(ctx, res)
}

func (c *Container) establish(ctx context.Context, res account.AuthResult) error {
	if err := c.tokens.SaveTokens(ctx, res.AccessToken, res.RefreshToken); err != nil {
		c.log.Error("session not persisted", slog.Any("err", err))
		if clearErr := c.tokens.Clear(ctx); clearErr != nil {
			c.log.Error("clear unsaved session", slog.Any("err", clearErr))
		}
		c.set(State{})
		return &Error{Reason: sessionNotSaved, Err: err}
	}

	user := res.User
	if user == nil {
		me, err := c.accounts.Me(ctx)
		if err != nil {
			c.log.Warn("profile fetch after login failed", slog.Any("err", err))
		} else {
			user = &me
		}
	}
	if user != nil {
		c.cacheUser(ctx, *user)
	}

	c.set(State{LoggedIn: true, User: user})
	c.log.Info("logged in")
	return nil
}

// Logout clears the persisted session. State is reset even when the store
// fails; the error is still returned.
func (c *Container) Logout(ctx context.Context) error {
	err := c.tokens.Clear(ctx)
	if err != nil {
		c.log.Error("logout clear failed", slog.Any("err", err))
	}
	c.set(State{})
	return err
}

// SessionExpired is the apiclient hook for a failed refresh. The token store
// has already been cleared by then.
func (c *Container) SessionExpired() {
	c.log.Info("session expired")
	c.set(State{})
}

func (c *Container) IsLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.LoggedIn
}

func (c *Container) User() *domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.User == nil {
		return nil
	}
	u := *c.state.User
	return &u
}

func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for state changes and returns its unsubscribe func.
func (c *Container) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Container) cacheUser(ctx context.Context, u domain.User) {
	if err := c.tokens.SaveUser(ctx, u); err != nil {
		c.log.Warn("user cache write failed", slog.Any("err", err))
	}
}

func (c *Container) set(s State) {
	c.mu.Lock()
	c.state = s
	fns := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
