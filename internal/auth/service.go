package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	resolver *access.Resolver
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, resolver *access.Resolver, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = access.DefaultResolver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials, then loads the permission records and
// registers the session concurrently. A failed session registration is
// logged and does not fail the login.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	var records []access.RawPermission
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.repo.PermissionRecords(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("auth: load permissions: %w", err)
		}
		return nil
	})
	if in.SessionID != "" {
		g.Go(func() error {
			if err := s.repo.CreateSession(gctx, in.SessionID, user.ID, in.ExpiresAt, in.IP, in.UserAgent); err != nil {
				s.logger.Warn("register session", slog.Any("error", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	payload, err := access.EncodePayload(records)
	if err != nil {
		return nil, err
	}
	actor := user.Actor()
	return &LoginResult{
		User:         user,
		Actor:        actor,
		Permissions:  payload,
		Capabilities: s.resolver.ResolveActor(&actor, payload),
	}, nil
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
