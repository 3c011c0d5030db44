package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/internal/cart"
	"github.com/angelmondragon/trailpack-backend/internal/checkout/helpers"
	"github.com/angelmondragon/trailpack-backend/internal/orders"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
	"github.com/angelmondragon/trailpack-backend/pkg/metrics"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartResolver interface {
	ResolveCartID(ctx context.Context, tx *gorm.DB, identity session.Identity) (int64, session.Identity, error)
}

// Service converts the caller's cart into an order.
type Service interface {
	Execute(ctx context.Context, identity session.Identity, input CheckoutInput) (*CheckoutResult, session.Identity, error)
}

// ServiceParams wires the checkout service. Logger and Metrics are optional.
type ServiceParams struct {
	TxRunner   txRunner
	Resolver   cartResolver
	Carts      cart.Repository
	Orders     orders.Repository
	Outbox     outbox.Emitter
	Logger     *logger.Logger
	Metrics    *metrics.CommerceMetrics
	TokenMaker func() string
}

type service struct {
	tx       txRunner
	resolver cartResolver
	carts    cart.Repository
	orders   orders.Repository
	outbox   outbox.Emitter
	logg     *logger.Logger
	metrics  *metrics.CommerceMetrics
	newToken func() string
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("cart resolver required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	tokenMaker := params.TokenMaker
	if tokenMaker == nil {
		tokenMaker = uuid.NewString
	}
	return &service{
		tx:       params.TxRunner,
		resolver: params.Resolver,
		carts:    params.Carts,
		orders:   params.Orders,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
		newToken: tokenMaker,
	}, nil
}

func (s *service) Execute(ctx context.Context, identity session.Identity, input CheckoutInput) (*CheckoutResult, session.Identity, error) {
	guest := !identity.IsAuthenticated()
	buyer := buyerLabel(guest)
	contact := helpers.Contact(input).Normalize()
	if err := helpers.ValidateContact(contact, guest); err != nil {
		s.metrics.IncCheckout(metrics.OutcomeRejected, buyer)
		return nil, identity, err
	}

	var (
		result   *CheckoutResult
		resolved = identity
		totals   helpers.OrderTotals
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		cartID, next, err := s.resolver.ResolveCartID(ctx, tx, identity)
		if err != nil {
			return err
		}
		resolved = next

		lines, err := cartRepo.ListLines(ctx, cartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart items")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}
		totals = helpers.ComputeTotals(lines)

		order := &models.Order{
			UserID:           identity.UserID,
			Email:            helpers.OptionalString(contact.Email),
			FirstName:        helpers.OptionalString(contact.FirstName),
			LastName:         helpers.OptionalString(contact.LastName),
			ShippingAddress1: helpers.OptionalString(contact.Address1),
			ShippingAddress2: helpers.OptionalString(contact.Address2),
			ShippingCity:     helpers.OptionalString(contact.City),
			ShippingPostcode: helpers.OptionalString(contact.Postcode),
			ShippingCountry:  contact.Country,
			Status:           enums.OrderStatusPending,
			Currency:         enums.CurrencyGBP,
			SubtotalCents:    totals.SubtotalCents,
			ShippingCents:    totals.ShippingCents,
			TotalCents:       totals.TotalCents,
		}
		if guest {
			token := s.newToken()
			order.GuestToken = &token
		}
		if err := ordersRepo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		items := helpers.FreezeItems(order.ID, lines)
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
		}
		if err := cartRepo.DeleteItems(ctx, cartID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorFor(identity.UserID),
			Data:          orderCreatedPayload(order, items),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order_created")
		}

		stored, err := ordersRepo.ListItemLines(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order items")
		}
		result = &CheckoutResult{
			Order:      orders.DetailFrom(order, stored),
			GuestToken: order.GuestToken,
		}
		return nil
	})
	if err != nil {
		s.metrics.IncCheckout(outcomeFor(err), buyer)
		return nil, identity, err
	}

	if result.GuestToken != nil {
		resolved = resolved.WithGuestToken(*result.GuestToken)
	}
	s.metrics.IncCheckout(metrics.OutcomeSuccess, buyer)
	s.metrics.ObserveOrderTotal(totals.TotalCents)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":    result.Order.ID,
			"total_cents": totals.TotalCents,
			"item_count":  totals.ItemCount,
			"buyer":       buyer,
		})
		s.logg.Info(logCtx, "checkout.completed")
	}
	return result, resolved, nil
}

func orderCreatedPayload(order *models.Order, items []models.OrderItem) payloads.OrderCreatedEvent {
	lines := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, payloads.OrderLine{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
		})
	}
	return payloads.OrderCreatedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Guest:         order.UserID == nil,
		Currency:      order.Currency,
		SubtotalCents: order.SubtotalCents,
		ShippingCents: order.ShippingCents,
		TotalCents:    order.TotalCents,
		Items:         lines,
	}
}

func buyerLabel(guest bool) string {
	if guest {
		return "guest"
	}
	return "user"
}

func outcomeFor(err error) string {
	if pkgerrors.IsClientError(err) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
