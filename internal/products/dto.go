package product

import (
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/money"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	PriceCents   int64   `json:"price_cents"`
	PriceDisplay string  `json:"price_display"`
	CategorySlug string  `json:"category_slug"`
	ImageURL     *string `json:"image_url"`
}

// FromModel maps the persistence model onto the API shape.
func FromModel(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		PriceCents:   p.PriceCents,
		PriceDisplay: money.FormatGBP(p.PriceCents),
		CategorySlug: string(p.CategorySlug),
		ImageURL:     p.ImageURL,
	}
}
