package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
	"github.com/angelmondragon/trailpack-backend/pkg/metrics"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox/payloads"
)

// Service owns the order state machine and guest order claims.
type Service interface {
	List(ctx context.Context, userID int64) ([]OrderSummary, error)
	Get(ctx context.Context, userID, orderID int64) (*OrderDetail, error)
	UpdateStatus(ctx context.Context, userID, orderID int64, status string) (*OrderSummary, error)
	Claim(ctx context.Context, userID int64, guestToken string) (*OrderSummary, error)
}

// ServiceParams wires the orders service. Logger and Metrics are optional.
type ServiceParams struct {
	Repository Repository
	TxRunner   txRunner
	Outbox     outbox.Emitter
	Logger     *logger.Logger
	Metrics    *metrics.CommerceMetrics
	Clock      func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.CommerceMetrics
	now     func() time.Time
}

// NewService builds the orders service.
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

func (s *service) List(ctx context.Context, userID int64) ([]OrderSummary, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := make([]OrderSummary, 0, len(rows))
	for i := range rows {
		out = append(out, SummaryFromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, orderID int64) (*OrderDetail, error) {
	order, err := s.repo.FindOwned(ctx, userID, orderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	lines, err := s.repo.ListItemLines(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list order items")
	}
	return DetailFrom(order, lines), nil
}

func (s *service) UpdateStatus(ctx context.Context, userID, orderID int64, status string) (*OrderSummary, error) {
	next, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
			WithDetails(map[string]any{"status": status})
	}

	var summary OrderSummary
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOwned(ctx, userID, orderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		current := order.Status
		if !current.CanTransitionTo(next) {
			return illegalTransition(current, next)
		}

		update := StatusUpdate{OrderID: order.ID, UserID: userID, From: current, To: next}
		if next == enums.OrderStatusPaid {
			paidAt := s.now().UTC()
			update.PaidAt = &paidAt
		}
		rows, err := repo.UpdateStatus(ctx, update)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorFor(&userID),
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				From:    current,
				To:      next,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order_status_changed")
		}

		updated, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		summary = SummaryFromModel(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": orderID,
			"status":   next,
		})
		s.logg.Info(logCtx, "order.status_changed")
	}
	return &summary, nil
}

func (s *service) Claim(ctx context.Context, userID int64, guestToken string) (*OrderSummary, error) {
	token := strings.TrimSpace(guestToken)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest_token is required")
	}

	var summary OrderSummary
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByGuestToken(ctx, token)
		if err != nil {
			return notFoundOr(err, "load guest order")
		}
		rows, err := repo.Claim(ctx, order.ID, userID, token)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim order")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderClaimed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorFor(&userID),
			Data:          payloads.OrderClaimedEvent{OrderID: order.ID, UserID: userID},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order_claimed")
		}

		claimed, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		summary = SummaryFromModel(claimed)
		return nil
	})
	if err != nil {
		s.metrics.IncClaim(outcomeFor(err))
		return nil, err
	}
	s.metrics.IncClaim(metrics.OutcomeSuccess)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": summary.ID,
			"user_id":  userID,
		})
		s.logg.Info(logCtx, "order.claimed")
	}
	return &summary, nil
}

func illegalTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal status transition").
		WithDetails(map[string]any{"from": from, "to": to})
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}

func outcomeFor(err error) string {
	if pkgerrors.IsClientError(err) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
