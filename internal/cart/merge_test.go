package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	"github.com/angelmondragon/trailpack-backend/pkg/db/dbtest"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
)

func newCoordinator(t *testing.T, f fixture) *MergeCoordinator {
	t.Helper()
	m, err := NewMergeCoordinator(MergeParams{Repository: f.repo, TxRunner: f.client})
	require.NoError(t, err)
	return m
}

func TestMergeGuestIntoUserSumsQuantities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.client.DB()
	user := dbtest.SeedUser(t, conn, "merge@example.com")

	guestID, guestIdentity, err := f.resolver.ResolveCartID(ctx, conn, session.Identity{})
	require.NoError(t, err)
	_, err = f.repo.UpsertItem(ctx, guestID, f.productA.ID, 2)
	require.NoError(t, err)
	_, err = f.repo.UpsertItem(ctx, guestID, f.productB.ID, 1)
	require.NoError(t, err)

	userCartID, _, err := f.resolver.ResolveCartID(ctx, conn, session.Identity{}.WithUser(user.ID))
	require.NoError(t, err)
	_, err = f.repo.UpsertItem(ctx, userCartID, f.productA.ID, 1)
	require.NoError(t, err)

	merged, err := newCoordinator(t, f).MergeGuestIntoUser(ctx, guestIdentity.WithUser(user.ID))
	require.NoError(t, err)
	assert.Nil(t, merged.CartID)
	require.NotNil(t, merged.UserID)

	assert.Equal(t, map[int64]int{f.productA.ID: 3, f.productB.ID: 1}, itemsOf(t, conn, userCartID))

	var remaining int64
	require.NoError(t, conn.Model(&models.Cart{}).Where("id = ?", guestID).Count(&remaining).Error)
	assert.Zero(t, remaining, "guest cart must be deleted")
	assert.Empty(t, itemsOf(t, conn, guestID))
}

func TestMergeCreatesUserCartWhenMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.client.DB()
	user := dbtest.SeedUser(t, conn, "fresh@example.com")

	guestID, guestIdentity, err := f.resolver.ResolveCartID(ctx, conn, session.Identity{})
	require.NoError(t, err)
	_, err = f.repo.UpsertItem(ctx, guestID, f.productB.ID, 4)
	require.NoError(t, err)

	_, err = newCoordinator(t, f).MergeGuestIntoUser(ctx, guestIdentity.WithUser(user.ID))
	require.NoError(t, err)

	userCart, err := f.repo.FindByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{f.productB.ID: 4}, itemsOf(t, conn, userCart.ID))
}

func TestMergeNoOpCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.client.DB()
	user := dbtest.SeedUser(t, conn, "noop@example.com")
	m := newCoordinator(t, f)

	anonymous := session.Identity{}.WithCart(5)
	out, err := m.MergeGuestIntoUser(ctx, anonymous)
	require.NoError(t, err)
	assert.True(t, out.Equal(anonymous), "merge without a user is a no-op")

	noCart := session.Identity{}.WithUser(user.ID)
	out, err = m.MergeGuestIntoUser(ctx, noCart)
	require.NoError(t, err)
	assert.True(t, out.Equal(noCart))

	userCartID, _, err := f.resolver.ResolveCartID(ctx, conn, noCart)
	require.NoError(t, err)
	_, err = f.repo.UpsertItem(ctx, userCartID, f.productA.ID, 2)
	require.NoError(t, err)

	out, err = m.MergeGuestIntoUser(ctx, noCart.WithCart(userCartID))
	require.NoError(t, err)
	assert.Nil(t, out.CartID, "an owned cart id is cleared, not merged")
	assert.Equal(t, map[int64]int{f.productA.ID: 2}, itemsOf(t, conn, userCartID))
}

func TestSplitUserIntoGuestCopiesWithoutTouchingUserCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.client.DB()
	user := dbtest.SeedUser(t, conn, "split@example.com")

	userCartID, _, err := f.resolver.ResolveCartID(ctx, conn, session.Identity{}.WithUser(user.ID))
	require.NoError(t, err)
	_, err = f.repo.UpsertItem(ctx, userCartID, f.productA.ID, 3)
	require.NoError(t, err)
	_, err = f.repo.UpsertItem(ctx, userCartID, f.productB.ID, 1)
	require.NoError(t, err)

	out, err := newCoordinator(t, f).SplitUserIntoGuest(ctx, user.ID, session.Identity{})
	require.NoError(t, err)
	require.NotNil(t, out.CartID)
	assert.NotEqual(t, userCartID, *out.CartID)

	want := map[int64]int{f.productA.ID: 3, f.productB.ID: 1}
	assert.Equal(t, want, itemsOf(t, conn, userCartID))
	assert.Equal(t, want, itemsOf(t, conn, *out.CartID))

	guest, err := f.repo.FindGuest(ctx, *out.CartID)
	require.NoError(t, err)
	assert.True(t, guest.IsGuest())
}

func TestSplitWithoutUserCartIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.client.DB(), "empty@example.com")

	out, err := newCoordinator(t, f).SplitUserIntoGuest(ctx, user.ID, session.Identity{})
	require.NoError(t, err)
	assert.Nil(t, out.CartID)
	assert.Zero(t, countCarts(t, f.client.DB()))
}

func TestNewMergeCoordinatorRequiresDependencies(t *testing.T) {
	_, err := NewMergeCoordinator(MergeParams{})
	require.Error(t, err)
	_, err = NewMergeCoordinator(MergeParams{Repository: NewRepository(nil)})
	require.Error(t, err)
}
