package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/flenzi/company-service/internal/audit"
	"github.com/flenzi/company-service/internal/cache"
	"github.com/flenzi/company-service/internal/domain"
	"github.com/flenzi/company-service/internal/repository"
	"github.com/flenzi/company-service/pkg/log"
	"github.com/flenzi/company-service/pkg/pubsub"
)

// userServiceImpl implements UserService interface.
type userServiceImpl struct {
	repo     repository.UserRepository
	cache    cache.Cache[domain.User]
	cacheTTL time.Duration
	events   eventPublisher
	sf       singleflight.Group
	writes   atomic.Uint64
}

// NewUserService creates a new user service. userCache and publisher may be
// nil.
func NewUserService(
	repo repository.UserRepository,
	userCache cache.Cache[domain.User],
	cacheTTL time.Duration,
	publisher pubsub.Publisher,
) UserService {
	return &userServiceImpl{
		repo:     repo,
		cache:    userCache,
		cacheTTL: cacheTTL,
		events:   eventPublisher{pub: publisher},
	}
}

// CreateUser registers a user. Emails are unique, compared after trimming and
// lower-casing.
func (s *userServiceImpl) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserResponse, error) {
	l := log.Ctx(ctx)

	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return nil, fmt.Errorf("%w: email and name are required", ErrInvalidArgument)
	}

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		l.Error().Err(err).Msg("failed to check email")
		return nil, err
	}
	if exists {
		audit.LogWithDetail(ctx, audit.ActionCreateUser, "", email, "user create rejected: email exists")
		return nil, ErrEmailExists
	}

	user := &domain.User{
		Email:  email,
		Name:   name,
		Active: true,
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent create.
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		l.Error().Err(err).Msg("failed to create user")
		return nil, err
	}

	resp := user.ToResponse()
	audit.Log(ctx, audit.ActionCreateUser, resp.ID, "user created")
	s.events.publish(ctx, pubsub.ChannelUser, pubsub.EventUserCreated, resp.ID, resp)

	return &resp, nil
}

// GetUser reads through the cache.
func (s *userServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*domain.UserResponse, error) {
	key := id.String()
	if s.cache != nil {
		key = s.cache.BuildKeyByID(key)
	}

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Shared by every waiter on key, so one caller going away must not
		// fail the others.
		return s.fetchWithCache(context.WithoutCancel(ctx), id, key)
	})
	if err != nil {
		return nil, err
	}

	user, ok := result.(*domain.User)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *userServiceImpl) fetchWithCache(ctx context.Context, id uuid.UUID, key string) (*domain.User, error) {
	l := log.Ctx(ctx)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l.Warn().Err(err).Msg("cache get error")
		}
	}

	seen := s.writes.Load()
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		l.Error().Err(err).Str(log.FieldUserID, id.String()).Msg("failed to get user")
		return nil, err
	}

	if s.cache != nil && s.writes.Load() == seen {
		if err := s.cache.Set(ctx, key, user, s.cacheTTL); err != nil {
			l.Warn().Err(err).Msg("cache set error")
		}
		// A write that landed between the check and Set may have deleted
		// the key before Set ran.
		if s.writes.Load() != seen {
			_ = s.cache.Delete(ctx, key)
		}
	}

	return user, nil
}

func (s *userServiceImpl) GetUserByEmail(ctx context.Context, email string) (*domain.UserResponse, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userServiceImpl) ListUsers(ctx context.Context) ([]domain.UserResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.UsersToResponse(users), nil
}

func (s *userServiceImpl) ListActiveUsers(ctx context.Context) ([]domain.UserResponse, error) {
	users, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return domain.UsersToResponse(users), nil
}

// UpdateUser changes name and/or active flag. Email is immutable.
func (s *userServiceImpl) UpdateUser(ctx context.Context, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.UserResponse, error) {
	l := log.Ctx(ctx)

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be blank", ErrInvalidArgument)
		}
		user.Name = name
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		l.Error().Err(err).Str(log.FieldUserID, id.String()).Msg("failed to update user")
		return nil, err
	}

	s.invalidate(ctx, id)

	resp := user.ToResponse()
	audit.Log(ctx, audit.ActionUpdateUser, resp.ID, "user updated")
	s.events.publish(ctx, pubsub.ChannelUser, pubsub.EventUserUpdated, resp.ID, resp)

	return &resp, nil
}

func (s *userServiceImpl) DeleteUser(ctx context.Context, id uuid.UUID) error {
	l := log.Ctx(ctx)

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		l.Error().Err(err).Str(log.FieldUserID, id.String()).Msg("failed to delete user")
		return err
	}

	s.invalidate(ctx, id)

	audit.Log(ctx, audit.ActionDeleteUser, id.String(), "user deleted")
	s.events.publish(ctx, pubsub.ChannelUser, pubsub.EventUserDeleted, id.String(), pubsub.DeletedPayload{ID: id.String()})

	return nil
}

// invalidate runs after every committed write. Bumping writes first keeps
// reads that started before the write from caching what they read.
func (s *userServiceImpl) invalidate(ctx context.Context, id uuid.UUID) {
	s.writes.Add(1)
	if s.cache == nil {
		return
	}
	key := s.cache.BuildKeyByID(id.String())
	s.sf.Forget(key)
	if err := s.cache.Delete(ctx, key); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldUserID, id.String()).Msg("cache invalidate error")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
