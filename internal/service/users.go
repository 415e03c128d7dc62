package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/cache"
	"github.com/Shivanand-hulikatti/event-reservations/internal/config"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/notify"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// UserService handles accounts: registration, login, lookup and deletion.
type UserService struct {
	users      UserStore
	accounts   AccountStore
	tokens     *auth.TokenManager
	cache      cache.EventCache
	publisher  notify.Publisher
	bcryptCost int
	now        func() time.Time
}

func NewUserService(users UserStore, accounts AccountStore, tokens *auth.TokenManager, bcryptCost int, c cache.EventCache, p notify.Publisher) *UserService {
	return &UserService{
		users: users, accounts: accounts, tokens: tokens,
		cache: c, publisher: p, bcryptCost: bcryptCost, now: time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a regular account.
func (s *UserService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	return s.create(ctx, req.Name, req.Email, req.Password, false)
}

func (s *UserService) create(ctx context.Context, name, email, password string, admin bool) (*model.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &model.User{Name: name, Email: email, PasswordHash: hash, IsAdmin: admin}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": u.ID, "admin": admin}).Info("user registered")
	return u, nil
}

// Login checks credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Issue(u.ID, u.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{Token: token, ExpiresAt: exp, User: *u}, nil
}

// GetUser returns a user to themselves or to an admin.
func (s *UserService) GetUser(ctx context.Context, caller auth.Identity, id string) (*model.User, error) {
	if err := checkSelf(caller, id); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns every account. Admin only.
func (s *UserService) ListUsers(ctx context.Context, caller auth.Identity) ([]model.User, error) {
	if !caller.Admin {
		return nil, ErrForbidden
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// DeleteUser runs the account deletion cascade for id: the user's
// reservations are released, their events and the account are removed.
func (s *UserService) DeleteUser(ctx context.Context, caller auth.Identity, id string) (*repository.AccountDeletion, error) {
	if err := checkSelf(caller, id); err != nil {
		return nil, err
	}
	out, err := s.accounts.DeleteAccount(ctx, id)
	if err != nil {
		return nil, domainErr("delete account", err)
	}

	touched := append(append([]string{}, out.DeletedEvents...), out.ReleasedEvents...)
	s.cache.Invalidate(ctx, touched...)

	at := s.now().UTC()
	activities := make([]notify.Activity, 0, len(out.DeletedEvents)+1)
	for _, eventID := range out.DeletedEvents {
		activities = append(activities, notify.Activity{Type: notify.EventDeleted, EventID: eventID, UserID: id, At: at})
	}
	activities = append(activities, notify.Activity{Type: notify.UserDeleted, UserID: id, At: at})
	s.publisher.Publish(ctx, activities...)

	logrus.WithFields(logrus.Fields{
		"user_id":         id,
		"by":              caller.UserID,
		"deleted_events":  len(out.DeletedEvents),
		"released_events": len(out.ReleasedEvents),
	}).Info("account deleted")
	return out, nil
}

// EnsureAdmin creates the configured admin account on startup. It does
// nothing when no admin password is configured or the email already exists.
func (s *UserService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Password == "" {
		return nil
	}
	email := normalizeEmail(cfg.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsAdmin {
			logrus.WithField("email", email).Warn("configured admin email belongs to a non-admin account")
		}
		return nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("look up admin: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = "admin"
	}
	if _, err := s.create(ctx, name, email, cfg.Password, true); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}
