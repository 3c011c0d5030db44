package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
	"github.com/angelmondragon/trailpack-backend/pkg/metrics"
)

// MergeCoordinator moves cart contents across the login and logout boundaries.
type MergeCoordinator struct {
	repo    Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.CommerceMetrics
}

// MergeParams wires the coordinator dependencies. Logger and Metrics are optional.
type MergeParams struct {
	Repository Repository
	TxRunner   txRunner
	Logger     *logger.Logger
	Metrics    *metrics.CommerceMetrics
}

// NewMergeCoordinator builds the coordinator.
func NewMergeCoordinator(params MergeParams) (*MergeCoordinator, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &MergeCoordinator{
		repo:    params.Repository,
		tx:      params.TxRunner,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// MergeGuestIntoUser folds the guest cart recorded in the identity into the
// user's cart and deletes it. The returned identity no longer carries a cart id.
func (m *MergeCoordinator) MergeGuestIntoUser(ctx context.Context, identity session.Identity) (session.Identity, error) {
	if identity.UserID == nil || identity.CartID == nil {
		return identity, nil
	}
	userID := *identity.UserID
	guestCartID := *identity.CartID
	merged := 0

	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		guest, err := repo.FindGuest(ctx, guestCartID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		userCartID, err := resolveUserCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		if userCartID == guest.ID {
			return nil
		}

		items, err := repo.ListItems(ctx, guest.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, err := repo.UpsertItem(ctx, userCartID, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		merged = len(items)

		if err := repo.DeleteItems(ctx, guest.ID); err != nil {
			return err
		}
		return repo.DeleteCart(ctx, guest.ID)
	})
	if err != nil {
		return identity, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge guest cart")
	}

	m.metrics.IncCartTransition(metrics.CartMerge)
	m.log(ctx, "cart.merged", map[string]any{"user_id": userID, "guest_cart_id": guestCartID, "items": merged})
	return identity.WithoutCart(), nil
}

// SplitUserIntoGuest copies the user's cart into a fresh unowned cart so the
// browser keeps its basket after logout. The user's cart is left untouched.
func (m *MergeCoordinator) SplitUserIntoGuest(ctx context.Context, userID int64, identity session.Identity) (session.Identity, error) {
	var guestCartID *int64

	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		userCart, err := repo.FindByUser(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		guest, err := repo.CreateGuest(ctx)
		if err != nil {
			return err
		}
		items, err := repo.ListItems(ctx, userCart.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, err := repo.UpsertItem(ctx, guest.ID, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		id := guest.ID
		guestCartID = &id
		return nil
	})
	if err != nil {
		return identity, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "split user cart")
	}
	if guestCartID == nil {
		return identity, nil
	}

	m.metrics.IncCartTransition(metrics.CartSplit)
	m.log(ctx, "cart.split", map[string]any{"user_id": userID, "guest_cart_id": *guestCartID})
	return identity.WithCart(*guestCartID), nil
}

func (m *MergeCoordinator) log(ctx context.Context, msg string, fields map[string]any) {
	if m.logg == nil {
		return
	}
	m.logg.Info(m.logg.WithFields(ctx, fields), msg)
}
