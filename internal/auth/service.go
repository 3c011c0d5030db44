package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/internal/users"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/oauth"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/angelmondragon/trailpack-backend/pkg/db"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
	"github.com/angelmondragon/trailpack-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	emailTakenMessage         = "email already registered"
)

// Service signs shoppers in and out. Every call that changes who is acting
// also moves the cart across the boundary and returns the new identity.
type Service interface {
	Register(ctx context.Context, identity session.Identity, req RegisterRequest) (*users.UserDTO, session.Identity, error)
	Login(ctx context.Context, identity session.Identity, req LoginRequest) (*users.UserDTO, session.Identity, error)
	Logout(ctx context.Context, identity session.Identity) (session.Identity, error)
	Me(ctx context.Context, identity session.Identity) (*users.UserDTO, error)
	CompleteOAuth(ctx context.Context, identity session.Identity, profile oauth.Profile) (*users.UserDTO, session.Identity, error)
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

type oauthLinker interface {
	FindOrCreate(ctx context.Context, profile oauth.Profile) (*models.User, error)
}

type cartMerger interface {
	MergeGuestIntoUser(ctx context.Context, identity session.Identity) (session.Identity, error)
	SplitUserIntoGuest(ctx context.Context, userID int64, identity session.Identity) (session.Identity, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	OAuthLinker    oauthLinker
	CartMerger     cartMerger
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type service struct {
	users     userRepository
	linker    oauthLinker
	carts     cartMerger
	passwords *security.Hasher
	logg      *logger.Logger
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.OAuthLinker == nil {
		return nil, fmt.Errorf("oauth linker is required")
	}
	if params.CartMerger == nil {
		return nil, fmt.Errorf("cart merger is required")
	}
	hasher, err := security.NewHasher(params.PasswordConfig)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	return &service{
		users:     params.UserRepo,
		linker:    params.OAuthLinker,
		carts:     params.CartMerger,
		passwords: hasher,
		logg:      params.Logger,
	}, nil
}

func (s *service) Register(ctx context.Context, identity session.Identity, req RegisterRequest) (*users.UserDTO, session.Identity, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, identity, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(req.Password) < security.MinPasswordLength {
		return nil, identity, pkgerrors.Newf(pkgerrors.CodeValidation, "password must be at least %d characters", security.MinPasswordLength)
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, identity, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, identity, pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
		}
		return nil, identity, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	next, err := s.signIn(ctx, identity, user, "auth.registered")
	if err != nil {
		return nil, identity, err
	}
	return users.FromModel(user), next, nil
}

func (s *service) Login(ctx context.Context, identity session.Identity, req LoginRequest) (*users.UserDTO, session.Identity, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, identity, err
	}
	next, err := s.signIn(ctx, identity, user, "auth.login")
	if err != nil {
		return nil, identity, err
	}
	return users.FromModel(user), next, nil
}

func (s *service) CompleteOAuth(ctx context.Context, identity session.Identity, profile oauth.Profile) (*users.UserDTO, session.Identity, error) {
	user, err := s.linker.FindOrCreate(ctx, profile)
	if err != nil {
		return nil, identity, err
	}
	next, err := s.signIn(ctx, identity, user, "auth.oauth_login")
	if err != nil {
		return nil, identity, err
	}
	return users.FromModel(user), next, nil
}

// Logout drops the user and any guest token. The user's basket is copied
// into a fresh guest cart so the browser keeps what it had.
func (s *service) Logout(ctx context.Context, identity session.Identity) (session.Identity, error) {
	next := identity.WithoutUser().WithoutGuestToken().WithoutCart()
	if identity.UserID == nil {
		return next, nil
	}
	userID := *identity.UserID
	next, err := s.carts.SplitUserIntoGuest(ctx, userID, next)
	if err != nil {
		return identity, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "user_id", userID), "auth.logout")
	}
	return next, nil
}

func (s *service) Me(ctx context.Context, identity session.Identity) (*users.UserDTO, error) {
	if identity.UserID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, *identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return users.FromModel(user), nil
}

func (s *service) signIn(ctx context.Context, identity session.Identity, user *models.User, event string) (session.Identity, error) {
	next, err := s.carts.MergeGuestIntoUser(ctx, identity.WithUser(user.ID))
	if err != nil {
		return identity, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "user_id", user.ID), event)
	}
	return next, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := strings.TrimSpace(email)
	if input == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.passwords.VerifyDecoy(password)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if security.IsOAuthOnly(user.PasswordHash) {
		s.passwords.VerifyDecoy(password)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	match, stale, err := s.passwords.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !match {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if stale {
		s.rehash(ctx, user, password)
	}
	return user, nil
}

// rehash stores a hash made with the current Argon2id parameters. Sign in
// goes ahead when this fails; the next one tries again.
func (s *service) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := s.passwords.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "user_id", user.ID), "auth.password_rehash_failed", err)
		}
		return
	}
	user.PasswordHash = hash
}
