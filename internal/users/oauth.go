package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/auth/oauth"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OAuthLinker resolves a provider profile to a local account.
type OAuthLinker struct {
	repo *Repository
	tx   txRunner
}

// NewOAuthLinker builds the linker.
func NewOAuthLinker(repo *Repository, tx txRunner) (*OAuthLinker, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &OAuthLinker{repo: repo, tx: tx}, nil
}

// FallbackEmail is the synthetic address used when a provider shares none.
func FallbackEmail(provider, providerID string) string {
	return fmt.Sprintf("%s@%s.oauth", providerID, provider)
}

// FindOrCreate returns the account for the profile: first by provider
// identity, then by email (linking it), else a new OAuth-only account.
func (l *OAuthLinker) FindOrCreate(ctx context.Context, profile oauth.Profile) (*models.User, error) {
	if profile.Provider == "" || profile.ProviderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "incomplete provider profile")
	}
	email := FallbackEmail(profile.Provider, profile.ProviderID)
	if profile.Email != nil && NormalizeEmail(*profile.Email) != "" {
		email = NormalizeEmail(*profile.Email)
	}

	var user *models.User
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)

		found, err := repo.FindByOAuth(ctx, profile.Provider, profile.ProviderID)
		if err == nil {
			user = found
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		found, err = l.linkByEmail(ctx, repo, email, profile)
		if err != nil || found != nil {
			user = found
			return err
		}

		provider, providerID := profile.Provider, profile.ProviderID
		if err := repo.CreateIfAbsent(ctx, CreateUserDTO{
			Email:         email,
			PasswordHash:  security.OAuthOnlyHash,
			FirstName:     profile.FirstName,
			LastName:      profile.LastName,
			OAuthProvider: &provider,
			OAuthID:       &providerID,
		}); err != nil {
			return err
		}

		found, err = repo.FindByOAuth(ctx, provider, providerID)
		if err == nil {
			user = found
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// The insert lost to a concurrent signup with the same email.
		found, err = l.linkByEmail(ctx, repo, email, profile)
		if err == nil && found == nil {
			err = fmt.Errorf("oauth account for %s vanished after insert", provider)
		}
		user = found
		return err
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find or create oauth user")
	}
	return user, nil
}

func (l *OAuthLinker) linkByEmail(ctx context.Context, repo *Repository, email string, profile oauth.Profile) (*models.User, error) {
	found, err := repo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if found.OAuthProvider == nil {
		if _, err := repo.LinkOAuth(ctx, found.ID, profile.Provider, profile.ProviderID); err != nil {
			return nil, err
		}
		return repo.FindByID(ctx, found.ID)
	}
	return found, nil
}
