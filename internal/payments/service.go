package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

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

const notPayableMessage = "order not found or not payable"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SettleInput selects the order to pay. GuestToken falls back to the one held
// in the session when omitted.
type SettleInput struct {
	OrderID    *int64  `json:"order_id"`
	GuestToken *string `json:"guest_token"`
}

// Service settles pending orders. There is no gateway: settling flips the
// order to paid under a status guard.
type Service interface {
	Settle(ctx context.Context, identity session.Identity, input SettleInput) (*orders.OrderSummary, error)
}

// ServiceParams wires the payment service. Logger and Metrics are optional.
type ServiceParams struct {
	Repository orders.Repository
	TxRunner   txRunner
	Outbox     outbox.Emitter
	Logger     *logger.Logger
	Metrics    *metrics.CommerceMetrics
	Clock      func() time.Time
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.CommerceMetrics
	now     func() time.Time
}

// NewService builds the mock payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repository,
		tx:      params.TxRunner,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     clock,
	}, nil
}

func (s *service) Settle(ctx context.Context, identity session.Identity, input SettleInput) (*orders.OrderSummary, error) {
	target, err := payableTarget(identity, input)
	if err != nil {
		s.metrics.IncPayment(metrics.OutcomeRejected)
		return nil, err
	}

	paidAt := s.now().UTC()
	var summary orders.OrderSummary
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.MarkPaid(ctx, target, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle order")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotPayable, notPayableMessage)
		}

		order, err := s.loadSettled(ctx, repo, target)
		if err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorFor(identity.UserID),
			Data: payloads.OrderPaidEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				TotalCents: order.TotalCents,
				Currency:   order.Currency,
				PaidAt:     paidAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order_paid")
		}
		summary = orders.SummaryFromModel(order)
		return nil
	})
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNotPayable {
			s.metrics.IncPayment(metrics.OutcomeRejected)
		} else {
			s.metrics.IncPayment(metrics.OutcomeError)
		}
		return nil, err
	}

	s.metrics.IncPayment(metrics.OutcomeSuccess)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":    summary.ID,
			"total_cents": summary.TotalCents,
		})
		s.logg.Info(logCtx, "payment.settled")
	}
	return &summary, nil
}

func (s *service) loadSettled(ctx context.Context, repo orders.Repository, target orders.PayableTarget) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if target.OrderID != nil {
		order, err = repo.FindByID(ctx, *target.OrderID)
	} else {
		order, err = repo.FindByGuestToken(ctx, *target.GuestToken)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotPayable, notPayableMessage)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return order, nil
}

// payableTarget decides which guard the settlement write uses. Signed-in
// callers pay their own orders by id; everyone else needs a guest token.
func payableTarget(identity session.Identity, input SettleInput) (orders.PayableTarget, error) {
	if input.OrderID != nil && *input.OrderID <= 0 {
		return orders.PayableTarget{}, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be positive")
	}

	if identity.IsAuthenticated() && input.OrderID != nil {
		userID := *identity.UserID
		return orders.PayableTarget{OrderID: input.OrderID, UserID: &userID}, nil
	}

	token := firstToken(input.GuestToken, identity.GuestToken)
	if token == "" {
		if identity.IsAuthenticated() {
			return orders.PayableTarget{}, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
		}
		return orders.PayableTarget{}, pkgerrors.New(pkgerrors.CodeValidation, "guest_token is required")
	}
	return orders.PayableTarget{OrderID: input.OrderID, GuestToken: &token}, nil
}

func firstToken(candidates ...*string) string {
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if token := strings.TrimSpace(*candidate); token != "" {
			return token
		}
	}
	return ""
}
