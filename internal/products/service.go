package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
)

type catalogRepository interface {
	List(ctx context.Context, filter ListFilter) ([]models.Product, error)
	FindByID(ctx context.Context, id int64) (*models.Product, error)
}

// ListInput carries the raw query parameters of a listing request.
type ListInput struct {
	Category string
	Query    string
}

// Service exposes the read-only catalog.
type Service interface {
	ListProducts(ctx context.Context, input ListInput) ([]ProductDTO, error)
	GetProduct(ctx context.Context, id int64) (*ProductDTO, error)
}

type service struct {
	repo catalogRepository
}

// NewService builds the catalog service.
func NewService(repo catalogRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListInput) ([]ProductDTO, error) {
	filter := ListFilter{Query: input.Query}
	if raw := strings.TrimSpace(input.Category); raw != "" {
		category, err := enums.ParseProductCategory(strings.ToLower(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown category")
		}
		filter.Category = &category
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) GetProduct(ctx context.Context, id int64) (*ProductDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return FromModel(row), nil
}
