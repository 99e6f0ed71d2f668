package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/teamspace/internal/clock"
	"github.com/smallbiznis/teamspace/internal/user/domain"
	"github.com/smallbiznis/teamspace/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minNameLength = 2
	maxNameLength = 80
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	validate *validator.Validate
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("user.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		validate: validator.New(),
	}
}

func (s *Service) FindOrCreateByEmail(ctx context.Context, email, name string) (*domain.User, bool, error) {
	email = domain.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email,max=320"); err != nil {
		return nil, false, domain.ErrInvalidEmail
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := s.clock.Now()
	user := domain.User{
		ID:        s.genID.Generate(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Timezone:  "UTC",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, user); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, false, err
		}
		// Lost the race against a concurrent first sign-in.
		winner, findErr := s.repo.FindByEmail(ctx, email)
		if findErr != nil {
			return nil, false, findErr
		}
		if winner == nil {
			return nil, false, err
		}
		return winner, false, nil
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()))
	return &user, true, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id snowflake.ID, req domain.UpdateProfileRequest) (*domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if n := len([]rune(name)); n < minNameLength || n > maxNameLength {
			return nil, domain.ErrInvalidName
		}
		user.Name = name
	}
	if req.Timezone != nil {
		tz := strings.TrimSpace(*req.Timezone)
		if tz == "" {
			return nil, domain.ErrInvalidTimezone
		}
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, domain.ErrInvalidTimezone
		}
		user.Timezone = tz
	}

	user.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateProfile(ctx, *user); err != nil {
		return nil, err
	}
	return user, nil
}
