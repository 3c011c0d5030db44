package helpers

import (
	"testing"

	"github.com/angelmondragon/trailpack-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
)

func TestComputeTotals(t *testing.T) {
	lines := []cart.Line{
		{ID: 2, ProductID: 10, PriceCents: 8999, Quantity: 1},
		{ID: 1, ProductID: 11, PriceCents: 1299, Quantity: 3},
	}
	totals := ComputeTotals(lines)
	if totals.SubtotalCents != 8999+3*1299 {
		t.Fatalf("unexpected subtotal %d", totals.SubtotalCents)
	}
	if totals.ShippingCents != 0 {
		t.Fatalf("expected zero shipping, got %d", totals.ShippingCents)
	}
	if totals.TotalCents != totals.SubtotalCents {
		t.Fatalf("total %d should equal subtotal %d", totals.TotalCents, totals.SubtotalCents)
	}
	if totals.ItemCount != 4 {
		t.Fatalf("expected 4 units, got %d", totals.ItemCount)
	}
}

func TestFreezeItemsOrdersByCartItemID(t *testing.T) {
	lines := []cart.Line{
		{ID: 7, ProductID: 3, PriceCents: 500, Quantity: 2},
		{ID: 4, ProductID: 9, PriceCents: 100, Quantity: 1},
	}
	items := FreezeItems(42, lines)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if *items[0].ProductID != 9 || *items[1].ProductID != 3 {
		t.Fatalf("items not ordered by cart item id: %+v", items)
	}
	if items[1].OrderID != 42 || items[1].PriceCents != 500 || items[1].Quantity != 2 {
		t.Fatalf("unexpected frozen item %+v", items[1])
	}
	if lines[0].ID != 7 {
		t.Fatal("input slice must not be reordered")
	}
}

func TestValidateContact(t *testing.T) {
	cases := []struct {
		name    string
		contact Contact
		guest   bool
		wantErr bool
	}{
		{name: "guest without email", contact: Contact{}, guest: true, wantErr: true},
		{name: "guest with email", contact: Contact{Email: "hiker@example.com"}, guest: true},
		{name: "user without email", contact: Contact{}, guest: false},
		{name: "malformed email", contact: Contact{Email: "not-an-email"}, guest: false, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateContact(tc.contact.Normalize(), tc.guest)
			if tc.wantErr {
				if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizeDefaultsCountry(t *testing.T) {
	got := Contact{Email: "  Hiker@Example.COM ", Country: " "}.Normalize()
	if got.Email != "hiker@example.com" {
		t.Fatalf("unexpected email %q", got.Email)
	}
	if got.Country != DefaultCountry {
		t.Fatalf("expected default country, got %q", got.Country)
	}
	if OptionalString("") != nil {
		t.Fatal("blank should map to nil")
	}
}
