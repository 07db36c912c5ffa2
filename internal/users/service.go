package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/platform/httpx"
	"github.com/freshcart/console/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	ListPermissions(ctx context.Context, userID int64) ([]access.RawPermission, error)
	ReplacePermissions(ctx context.Context, userID int64, records []access.RawPermission) error
}

// Auditor records administrative changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RefreshEnqueuer schedules a rewrite of the live sessions of a user.
type RefreshEnqueuer interface {
	EnqueueSessionsRefresh(ctx context.Context, userID int64) error
}

// Service handles user business logic.
type Service struct {
	repo      RepositoryPort
	resolver  *access.Resolver
	audit     Auditor
	refresh   RefreshEnqueuer
	validator *validator.Validate
	logger    *slog.Logger
}

// NewService builds Service instance. audit and refresh may be nil.
func NewService(repo RepositoryPort, resolver *access.Resolver, audit Auditor, refresh RefreshEnqueuer, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = access.DefaultResolver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		resolver:  resolver,
		audit:     audit,
		refresh:   refresh,
		validator: validator.New(),
		logger:    logger,
	}
}

// ListUsers returns one page of users with pagination metadata.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter, page, perPage int) ([]User, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	filter.Limit = pagination.PerPage
	filter.Offset = pagination.Offset()
	users, total, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(pagination.Page, pagination.PerPage, total), nil
}

// GetUser returns the user with its stored records and resolved capabilities.
func (s *Service) GetUser(ctx context.Context, id int64) (Detail, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	records, err := s.repo.ListPermissions(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{
		User:         user,
		Records:      records,
		Capabilities: s.resolver.Resolve(user.Role, records),
	}, nil
}

// UpdatePermissions validates and stores a new record set for a user, then
// audits the change and schedules a refresh of the user's live sessions.
// Unlike the login-time normalizer it rejects unknown modules instead of
// skipping them. Duplicate modules collapse to the last record.
func (s *Service) UpdatePermissions(ctx context.Context, in PermissionsUpdate) (Detail, error) {
	records, err := s.canonical(in.Records)
	if err != nil {
		return Detail{}, err
	}
	user, err := s.repo.GetUser(ctx, in.UserID)
	if err != nil {
		return Detail{}, err
	}
	var before []access.RawPermission
	if s.audit != nil {
		if before, err = s.repo.ListPermissions(ctx, in.UserID); err != nil {
			s.logger.Warn("load permissions before replace", slog.Int64("user_id", in.UserID), slog.Any("error", err))
		}
	}
	if err := s.repo.ReplacePermissions(ctx, in.UserID, records); err != nil {
		return Detail{}, err
	}

	userID := strconv.FormatInt(in.UserID, 10)
	if s.audit != nil {
		entry := shared.PermissionsReplaced(in.Actor, in.UserID, before, records)
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("audit permission change", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	if s.refresh != nil {
		if err := s.refresh.EnqueueSessionsRefresh(ctx, in.UserID); err != nil {
			s.logger.Warn("enqueue sessions refresh", slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	return Detail{
		User:         user,
		Records:      records,
		Capabilities: s.resolver.Resolve(user.Role, records),
	}, nil
}

func (s *Service) canonical(records []access.RawPermission) ([]access.RawPermission, error) {
	overrides := make(access.Overrides, len(records))
	for i, rec := range records {
		if err := s.validator.Struct(rec); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				return nil, fmt.Errorf("%w: %w: record %d: %s is invalid", httpx.ErrValidation, ErrInvalidPermissions, i, fieldErrs[0].Field())
			}
			return nil, fmt.Errorf("%w: %w: record %d: %v", httpx.ErrValidation, ErrInvalidPermissions, i, err)
		}
		module, ok := access.ParseModule(rec.Module)
		if !ok {
			return nil, fmt.Errorf("%w: %w: record %d: unknown module %q", httpx.ErrValidation, ErrInvalidPermissions, i, rec.Module)
		}
		overrides[module] = rec.Capability()
	}
	return overrides.Records(), nil
}
