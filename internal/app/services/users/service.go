// Package users handles registration, login and account administration.
package users

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bytebazaar/storefront/internal/app/domain/user"
	"github.com/bytebazaar/storefront/internal/app/storage"
	"github.com/bytebazaar/storefront/internal/auth"
	"github.com/bytebazaar/storefront/internal/errors"
	"github.com/bytebazaar/storefront/internal/logging"
)

// Service manages user accounts and session tokens.
type Service struct {
	store    storage.UserStore
	signer   *auth.Signer
	tokenTTL time.Duration
	log      *logging.Logger
}

// New creates the users service.
func New(store storage.UserStore, signer *auth.Signer, tokenTTL time.Duration, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("users")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{store: store, signer: signer, tokenTTL: tokenTTL, log: log}
}

// Register creates a customer account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, name, password string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, errors.InvalidInput("a valid email is required")
	}
	if len(password) < 8 {
		return user.User{}, errors.InvalidInput("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, errors.Internal("hash password", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Role:         user.RoleCustomer,
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrDuplicateEmail) {
			return user.User{}, errors.Conflict("email already registered")
		}
		return user.User{}, errors.Internal("create user", err)
	}

	s.log.WithContext(ctx).WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// Authenticate checks credentials and mints a session token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, string, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			// Burn a compare anyway so missing and wrong-password cases cost
			// the same.
			_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000uGyiOiw0Lw7F1xRJCcIJbiI0PTJCrD2i"), []byte(password))
			return user.User{}, "", errors.Unauthorized("invalid credentials")
		}
		return user.User{}, "", errors.Internal("look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"user_id": u.ID})
		return user.User{}, "", errors.Unauthorized("invalid credentials")
	}

	token, err := s.signer.SignSession(u.ID, u.Email, u.Role, s.tokenTTL)
	if err != nil {
		return user.User{}, "", errors.Internal("sign session token", err)
	}
	return u, token, nil
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return user.User{}, errors.NotFound("user not found")
		}
		return user.User{}, errors.Internal("get user", err)
	}
	return u, nil
}

// List returns all users. Admin only; enforced at the HTTP layer.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	list, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, errors.Internal("list users", err)
	}
	return list, nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, id, role string) (user.User, error) {
	if role != user.RoleCustomer && role != user.RoleAdmin {
		return user.User{}, errors.InvalidInput("role must be customer or admin")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Role = role

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, errors.Internal("update user", err)
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id": id,
		"role":    role,
	}).Info("user role changed")
	return updated, nil
}
