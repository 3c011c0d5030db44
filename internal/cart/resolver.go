package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
)

// Resolver maps the caller identity onto exactly one cart id.
type Resolver struct {
	repo Repository
}

// NewResolver builds a cart resolver.
func NewResolver(repo Repository) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &Resolver{repo: repo}, nil
}

// ResolveCartID returns the cart the identity shops from, creating it on first
// use. Authenticated users always get their owned cart; guests keep the cart
// recorded in their identity while it exists and stays unowned.
func (r *Resolver) ResolveCartID(ctx context.Context, tx *gorm.DB, identity session.Identity) (int64, session.Identity, error) {
	repo := r.repo.WithTx(tx)

	if identity.UserID != nil {
		id, err := resolveUserCart(ctx, repo, *identity.UserID)
		if err != nil {
			return 0, identity, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve user cart")
		}
		return id, identity, nil
	}

	if identity.CartID != nil {
		cart, err := repo.FindGuest(ctx, *identity.CartID)
		if err == nil {
			return cart.ID, identity, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, identity, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load guest cart")
		}
	}

	cart, err := repo.CreateGuest(ctx)
	if err != nil {
		return 0, identity, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create guest cart")
	}
	return cart.ID, identity.WithCart(cart.ID), nil
}

// resolveUserCart finds or creates the user's cart. Concurrent creators race on
// the unique user_id; the loser's insert is a no-op and both re-read the winner.
func resolveUserCart(ctx context.Context, repo Repository, userID int64) (int64, error) {
	cart, err := repo.FindByUser(ctx, userID)
	if err == nil {
		return cart.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	if err := repo.CreateForUserIfAbsent(ctx, userID); err != nil {
		return 0, err
	}
	cart, err = repo.FindByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return cart.ID, nil
}
