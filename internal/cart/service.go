package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
)

type cartResolver interface {
	ResolveCartID(ctx context.Context, tx *gorm.DB, identity session.Identity) (int64, session.Identity, error)
}

// Service exposes cart item operations. Every call resolves the caller's cart
// first and returns the possibly updated identity. On error the input identity
// is returned unchanged since the transaction rolled back any cart it created.
type Service interface {
	GetCart(ctx context.Context, identity session.Identity) (*View, session.Identity, error)
	AddItem(ctx context.Context, identity session.Identity, input AddItemInput) (*ItemView, session.Identity, error)
	UpdateItem(ctx context.Context, identity session.Identity, itemID int64, quantity int) (*ItemView, session.Identity, error)
	RemoveItem(ctx context.Context, identity session.Identity, itemID int64) (session.Identity, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	resolver cartResolver
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, resolver cartResolver) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("cart resolver required")
	}
	return &service{repo: repo, tx: tx, resolver: resolver}, nil
}

func (s *service) GetCart(ctx context.Context, identity session.Identity) (*View, session.Identity, error) {
	var view *View
	resolved := identity
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartID, next, err := s.resolver.ResolveCartID(ctx, tx, identity)
		if err != nil {
			return err
		}
		resolved = next

		lines, err := s.repo.WithTx(tx).ListLines(ctx, cartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
		}
		view = viewFromLines(cartID, lines)
		return nil
	})
	if err != nil {
		return nil, identity, err
	}
	return view, resolved, nil
}

func (s *service) AddItem(ctx context.Context, identity session.Identity, input AddItemInput) (*ItemView, session.Identity, error) {
	if input.ProductID <= 0 {
		return nil, identity, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.Quantity < MinQuantity || input.Quantity > MaxQuantity {
		return nil, identity, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between %d and %d", MinQuantity, MaxQuantity)
	}

	var item *ItemView
	resolved := identity
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.ProductExists(ctx, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		cartID, next, err := s.resolver.ResolveCartID(ctx, tx, identity)
		if err != nil {
			return err
		}
		resolved = next

		stored, err := repo.UpsertItemCapped(ctx, cartID, input.ProductID, input.Quantity, MaxQuantity)
		if errors.Is(err, ErrQuantityLimit) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "cart line cannot exceed %d units", MaxQuantity)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
		}
		item, err = s.lineView(ctx, repo, cartID, stored.ID)
		return err
	})
	if err != nil {
		return nil, identity, err
	}
	return item, resolved, nil
}

func (s *service) UpdateItem(ctx context.Context, identity session.Identity, itemID int64, quantity int) (*ItemView, session.Identity, error) {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return nil, identity, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between %d and %d", MinQuantity, MaxQuantity)
	}

	var item *ItemView
	resolved := identity
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartID, next, err := s.resolver.ResolveCartID(ctx, tx, identity)
		if err != nil {
			return err
		}
		resolved = next

		repo := s.repo.WithTx(tx)
		rows, err := repo.SetItemQuantity(ctx, cartID, itemID, quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		item, err = s.lineView(ctx, repo, cartID, itemID)
		return err
	})
	if err != nil {
		return nil, identity, err
	}
	return item, resolved, nil
}

func (s *service) RemoveItem(ctx context.Context, identity session.Identity, itemID int64) (session.Identity, error) {
	resolved := identity
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartID, next, err := s.resolver.ResolveCartID(ctx, tx, identity)
		if err != nil {
			return err
		}
		resolved = next

		rows, err := s.repo.WithTx(tx).DeleteItem(ctx, cartID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil
	})
	if err != nil {
		return identity, err
	}
	return resolved, nil
}

func (s *service) lineView(ctx context.Context, repo Repository, cartID, itemID int64) (*ItemView, error) {
	lines, err := repo.ListLines(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	for _, l := range lines {
		if l.ID == itemID {
			view := itemFromLine(l)
			return &view, nil
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("item vanished after write"), "load cart item")
}
