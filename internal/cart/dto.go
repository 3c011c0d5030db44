package cart

// ItemView is the API shape of a cart line.
type ItemView struct {
	ID             int64   `json:"id"`
	ProductID      int64   `json:"product_id"`
	Name           string  `json:"name"`
	PriceCents     int64   `json:"price_cents"`
	Quantity       int     `json:"quantity"`
	LineTotalCents int64   `json:"line_total_cents"`
	ImageURL       *string `json:"image_url"`
}

// View is the API shape of a whole cart.
type View struct {
	CartID        int64      `json:"cart_id"`
	Items         []ItemView `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
}

// AddItemInput is the payload for adding a product to the cart.
type AddItemInput struct {
	ProductID int64
	Quantity  int
}

const (
	MinQuantity = 1
	MaxQuantity = 99
)

func itemFromLine(l Line) ItemView {
	return ItemView{
		ID:             l.ID,
		ProductID:      l.ProductID,
		Name:           l.Name,
		PriceCents:     l.PriceCents,
		Quantity:       l.Quantity,
		LineTotalCents: l.LineTotal(),
		ImageURL:       l.ImageURL,
	}
}

func viewFromLines(cartID int64, lines []Line) *View {
	view := &View{CartID: cartID, Items: make([]ItemView, 0, len(lines))}
	for _, l := range lines {
		item := itemFromLine(l)
		view.SubtotalCents += item.LineTotalCents
		view.Items = append(view.Items, item)
	}
	return view
}
