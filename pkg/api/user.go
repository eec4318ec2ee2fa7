package api

import (
	"context"
	"time"

	"github.com/enchanted/marketplace/pkg/session"
)

type User struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// UserService covers account and session operations.
type UserService struct {
	client  *Client
	session *session.Store
}

func NewUserService(baseURL string, store *session.Store) *UserService {
	return &UserService{client: newClient(baseURL, store), session: store}
}

func (s *UserService) Register(ctx context.Context, username, password, email string) (*User, error) {
	req := map[string]string{"username": username, "password": password, "email": email}
	var resp struct {
		Message string `json:"message"`
		User    User   `json:"user"`
	}
	if err := s.client.do(ctx, "POST", "/user/register", req, &resp, "registration failed"); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Login saves the session (token and user) as a side effect on success.
// A failed login leaves the store untouched.
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	req := map[string]string{"username": username, "password": password}
	var resp LoginResult
	if err := s.client.do(ctx, "POST", "/user/login", req, &resp, "login failed"); err != nil {
		return nil, err
	}
	if err := s.session.Save(resp.Token, resp.User); err != nil {
		return nil, &Error{Message: "saving session failed", Err: err}
	}
	return &resp, nil
}

func (s *UserService) GetProfile(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := s.client.do(ctx, "GET", "/user/profile", nil, &resp, "fetching profile failed"); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// UpdateProfile returns the updated user but does NOT refresh the cached
// user in the session store. That asymmetry with Login is inherited from
// the service contract; callers that display the cached user must patch
// their own copy after a successful update.
func (s *UserService) UpdateProfile(ctx context.Context, email string) (*User, error) {
	req := map[string]string{"email": email}
	var resp struct {
		Message string `json:"message"`
		User    User   `json:"user"`
	}
	if err := s.client.do(ctx, "PUT", "/user/profile", req, &resp, "updating profile failed"); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout clears the stored session. It cannot fail: a store error leaves
// nothing usable behind anyway.
func (s *UserService) Logout() {
	_ = s.session.Clear()
}

func (s *UserService) IsAuthenticated() bool {
	return s.session.IsAuthenticated()
}

// CurrentUser returns the cached user, or nil when absent or corrupt.
func (s *UserService) CurrentUser() *User {
	var u User
	if !s.session.CurrentUser(&u) {
		return nil
	}
	return &u
}

func (s *UserService) HealthCheck(ctx context.Context) (*Health, error) {
	var resp Health
	if err := s.client.do(ctx, "GET", "/health", nil, &resp, "service unreachable"); err != nil {
		return nil, err
	}
	return &resp, nil
}
