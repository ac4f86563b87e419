package account

import (
	"context"
	"errors"
	"strings"

	"schedula/client/internal/apiclient"
	"schedula/client/internal/domain"
)

const (
	LoginPath    = "/auth/login/"
	RegisterPath = "/auth/register/"
	mePath       = "/auth/me/"
	passwordPath = "/auth/change-password/"
)

var (
	ErrCredentialsRequired = errors.New("email and password are required")
	ErrMissingTokens       = errors.New("auth response did not include both tokens")
)

type Service struct {
	api *apiclient.Client
}

func NewService(api *apiclient.Client) *Service {
	return &Service{api: api}
}

// AuthResult is what login and registration hand back: a token pair and the
// user it belongs to. User is nil when the backend omitted it.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return AuthResult{}, ErrCredentialsRequired
	}
	var out authResponse
	if err := s.api.Post(ctx, LoginPath, loginRequest{Email: email, Password: password}, &out); err != nil {
		return AuthResult{}, err
	}
	return out.result()
}

type RegisterInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return AuthResult{}, ErrCredentialsRequired
	}
	var out authResponse
	if err := s.api.Post(ctx, RegisterPath, in, &out); err != nil {
		return AuthResult{}, err
	}
	return out.result()
}

func (s *Service) Me(ctx context.Context) (domain.User, error) {
	var out userRecord
	if err := s.api.Get(ctx, mePath, &out); err != nil {
		return domain.User{}, err
	}
	return out.toDomain(), nil
}

// ProfileUpdate carries the fields to change; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

func (s *Service) UpdateProfile(ctx context.Context, in ProfileUpdate) (domain.User, error) {
	var out userRecord
	if err := s.api.Patch(ctx, mePath, in, &out); err != nil {
		return domain.User{}, err
	}
	return out.toDomain(), nil
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return errors.New("old and new password are required")
	}
	return s.api.Post(ctx, passwordPath, changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}, nil)
}

type tokenPair struct {
	Access       string `json:"access"`
	Refresh      string `json:"refresh"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	tokenPair
	Tokens *tokenPair  `json:"tokens"`
	User   *userRecord `json:"user"`
}

func (r authResponse) result() (AuthResult, error) {
	pair := r.tokenPair
	if r.Tokens != nil {
		pair = *r.Tokens
	}
	res := AuthResult{
		AccessToken:  firstOf(pair.Access, pair.AccessToken),
		RefreshToken: firstOf(pair.Refresh, pair.RefreshToken),
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		return AuthResult{}, ErrMissingTokens
	}
	if r.User != nil {
		u := r.User.toDomain()
		res.User = &u
	}
	return res, nil
}

type userRecord struct {
	ID        apiclient.FlexString `json:"id"`
	Email     string               `json:"email"`
	FirstName string               `json:"first_name"`
	LastName  string               `json:"last_name"`
	Phone     string               `json:"phone"`
}

func (r userRecord) toDomain() domain.User {
	return domain.User{
		ID:        string(r.ID),
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
