package enums

import "fmt"

// ProductCategory is the catalog grouping stored in products.category_slug.
type ProductCategory string

const (
	ProductCategoryBackpacks   ProductCategory = "backpacks"
	ProductCategoryJackets     ProductCategory = "jackets"
	ProductCategoryBoots       ProductCategory = "boots"
	ProductCategoryAccessories ProductCategory = "accessories"
)

var validProductCategories = []ProductCategory{
	ProductCategoryBackpacks,
	ProductCategoryJackets,
	ProductCategoryBoots,
	ProductCategoryAccessories,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known category.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
