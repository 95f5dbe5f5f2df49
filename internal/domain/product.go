// Package domain contains the core storefront entities, the pure rules over
// them, and the ports implemented by adapters.
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a cached copy of a catalog book. The catalog service owns it.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	CoverURL    string          `json:"coverUrl,omitempty"`
	ISBN        string          `json:"isbn,omitempty"`
	Publisher   string          `json:"publisher,omitempty"`
	Year        int             `json:"year,omitempty"`
	Pages       int             `json:"pages,omitempty"`
	Description string          `json:"description,omitempty"`
	Condition   string          `json:"condition,omitempty"`
}

// BookInput is the admin payload for creating or updating a catalog book.
type BookInput struct {
	Title       string          `json:"title" validate:"required"`
	Author      string          `json:"author" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"required"`
	Condition   string          `json:"condition"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CoverURL    string          `json:"coverUrl"`
	ISBN        string          `json:"isbn"`
	Publisher   string          `json:"publisher"`
	Year        int             `json:"year"`
	Pages       int             `json:"pages" validate:"gte=0"`
	Description string          `json:"description"`
}

// Page selects a window of a paginated listing.
type Page struct {
	Number int
	Size   int
}

// DefaultPage fetches a single large page, matching what the storefront
// listing shows.
var DefaultPage = Page{Number: 1, Size: 100}

// Catalog categories known to the storefront.
const (
	CategoryFiction    = "FICCAO"
	CategoryNonFiction = "NAO_FICCAO"
	CategoryTechnical  = "TECNICO"
	CategoryAcademic   = "ACADEMICO"
	CategoryChildren   = "INFANTIL"
	CategoryOther      = "OUTROS"
)

// AllCategories lists every category in display order.
var AllCategories = []string{
	CategoryFiction,
	CategoryNonFiction,
	CategoryTechnical,
	CategoryAcademic,
	CategoryChildren,
	CategoryOther,
}

// NormalizeKey folds a category or method name for case-insensitive compare.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
