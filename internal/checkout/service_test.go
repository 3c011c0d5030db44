package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/internal/cart"
	"github.com/angelmondragon/trailpack-backend/internal/orders"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	"github.com/angelmondragon/trailpack-backend/pkg/db"
	"github.com/angelmondragon/trailpack-backend/pkg/db/dbtest"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox"
)

type checkoutFixture struct {
	client   *db.Client
	carts    *cart.GormRepository
	resolver *cart.Resolver
	backpack models.Product
	socks    models.Product
}

func newCheckoutFixture(t *testing.T) checkoutFixture {
	t.Helper()
	client := dbtest.Open(t)
	carts := cart.NewRepository(client.DB())
	resolver, err := cart.NewResolver(carts)
	require.NoError(t, err)
	return checkoutFixture{
		client:   client,
		carts:    carts,
		resolver: resolver,
		backpack: dbtest.SeedProduct(t, client.DB(), "Trail Backpack 35L", 8999),
		socks:    dbtest.SeedProduct(t, client.DB(), "Merino Hiking Socks", 1299),
	}
}

func (f checkoutFixture) service(t *testing.T, emitter outbox.Emitter) Service {
	t.Helper()
	if emitter == nil {
		emitter = outbox.NewService(outbox.NewRepository(f.client.DB()), nil)
	}
	svc, err := NewService(ServiceParams{
		TxRunner:   f.client,
		Resolver:   f.resolver,
		Carts:      f.carts,
		Orders:     orders.NewRepository(f.client.DB()),
		Outbox:     emitter,
		TokenMaker: func() string { return "guest-token-1" },
	})
	require.NoError(t, err)
	return svc
}

// fillCart resolves a cart for the identity and adds the given quantities.
func (f checkoutFixture) fillCart(t *testing.T, identity session.Identity, quantities map[int64]int) (int64, session.Identity) {
	t.Helper()
	var cartID int64
	err := f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		id, next, err := f.resolver.ResolveCartID(context.Background(), tx, identity)
		if err != nil {
			return err
		}
		cartID, identity = id, next
		for productID, qty := range quantities {
			if _, err := f.carts.WithTx(tx).UpsertItem(context.Background(), cartID, productID, qty); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return cartID, identity
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(model).Count(&count).Error)
	return count
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func TestExecuteGuestCheckoutSnapshotsCart(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := f.service(t, nil)
	ctx := context.Background()
	cartID, identity := f.fillCart(t, session.Identity{}, map[int64]int{f.backpack.ID: 1, f.socks.ID: 3})

	result, next, err := svc.Execute(ctx, identity, CheckoutInput{Email: "Hiker@Example.com", City: "Keswick"})
	require.NoError(t, err)

	require.NotNil(t, result.GuestToken)
	assert.Equal(t, "guest-token-1", *result.GuestToken)
	require.NotNil(t, next.GuestToken)
	assert.Equal(t, *result.GuestToken, *next.GuestToken)
	require.NotNil(t, next.CartID)
	assert.Equal(t, cartID, *next.CartID)

	order := result.Order
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.CurrencyGBP, order.Currency)
	assert.Equal(t, int64(8999+3*1299), order.SubtotalCents)
	assert.Zero(t, order.ShippingCents)
	assert.Equal(t, order.SubtotalCents, order.TotalCents)
	assert.Equal(t, "UK", order.ShippingAddress.Country)
	require.NotNil(t, order.Email)
	assert.Equal(t, "hiker@example.com", *order.Email)
	require.Len(t, order.Items, 2)

	var stored models.Order
	require.NoError(t, f.client.DB().First(&stored, order.ID).Error)
	assert.Nil(t, stored.UserID)
	require.NotNil(t, stored.GuestToken)

	var items []models.CartItem
	require.NoError(t, f.client.DB().Where("cart_id = ?", cartID).Find(&items).Error)
	assert.Empty(t, items, "cart items are cleared")
	assert.Equal(t, int64(1), countRows(t, f.client.DB(), &models.Cart{}), "cart row survives")

	var events []models.OutboxEvent
	require.NoError(t, f.client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)
	assert.Equal(t, order.ID, events[0].AggregateID)
}

func TestExecuteFreezesPrices(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := f.service(t, nil)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.client.DB(), "owner@example.com")
	identity := session.Identity{}.WithUser(user.ID)
	f.fillCart(t, identity, map[int64]int{f.backpack.ID: 2})

	result, next, err := svc.Execute(ctx, identity, CheckoutInput{})
	require.NoError(t, err)
	assert.Nil(t, result.GuestToken)
	assert.Nil(t, next.GuestToken)

	require.NoError(t, f.client.DB().Model(&models.Product{}).
		Where("id = ?", f.backpack.ID).
		Update("price_cents", 1).Error)

	var items []models.OrderItem
	require.NoError(t, f.client.DB().Where("order_id = ?", result.Order.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, int64(8999), items[0].PriceCents)

	var stored models.Order
	require.NoError(t, f.client.DB().First(&stored, result.Order.ID).Error)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, user.ID, *stored.UserID)
	assert.Nil(t, stored.GuestToken)
	assert.Equal(t, int64(17998), stored.TotalCents)
}

func TestExecuteEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := f.service(t, nil)

	_, _, err := svc.Execute(context.Background(), session.Identity{}, CheckoutInput{Email: "hiker@example.com"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeEmptyCart, pkgerrors.As(err).Code())
	assert.Zero(t, countRows(t, f.client.DB(), &models.Order{}))
}

func TestExecuteGuestValidationRunsBeforeWrites(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := f.service(t, nil)
	_, identity := f.fillCart(t, session.Identity{}, map[int64]int{f.socks.ID: 1})
	cartsBefore := countRows(t, f.client.DB(), &models.Cart{})

	for _, input := range []CheckoutInput{{}, {Email: "nope"}} {
		_, next, err := svc.Execute(context.Background(), identity, input)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		assert.True(t, next.Equal(identity))
	}

	// A brand-new anonymous session must not get a cart out of a rejected checkout.
	_, next, err := svc.Execute(context.Background(), session.Identity{}, CheckoutInput{})
	require.Error(t, err)
	assert.Nil(t, next.CartID)

	assert.Equal(t, cartsBefore, countRows(t, f.client.DB(), &models.Cart{}))
	assert.Zero(t, countRows(t, f.client.DB(), &models.Order{}))
	assert.Equal(t, int64(1), countRows(t, f.client.DB(), &models.CartItem{}))
}

func TestExecuteRollsBackOnFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := f.service(t, failingEmitter{})
	cartID, identity := f.fillCart(t, session.Identity{}, map[int64]int{f.backpack.ID: 1, f.socks.ID: 2})

	_, next, err := svc.Execute(context.Background(), identity, CheckoutInput{Email: "hiker@example.com"})
	require.Error(t, err)
	assert.Nil(t, next.GuestToken)

	assert.Zero(t, countRows(t, f.client.DB(), &models.Order{}))
	assert.Zero(t, countRows(t, f.client.DB(), &models.OrderItem{}))

	var items []models.CartItem
	require.NoError(t, f.client.DB().Where("cart_id = ?", cartID).Find(&items).Error)
	assert.Len(t, items, 2, "cart left exactly as before")
}
