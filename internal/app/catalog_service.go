package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bookstore/internal/domain"
)

// ErrInvalidPrice indicates a book price that is not positive.
var ErrInvalidPrice = errors.New("price must be greater than zero")

// BookFilter narrows a catalog listing.
type BookFilter struct {
	Category string
	Search   string
	Page     domain.Page
}

// CatalogService lists books through the settings gate and manages the
// catalog for admins.
type CatalogService struct {
	catalog   domain.CatalogGateway
	gate      *SettingsService
	validator *Validator
	logger    *slog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(catalog domain.CatalogGateway, gate *SettingsService, validator *Validator, logger *slog.Logger) *CatalogService {
	return &CatalogService{catalog: catalog, gate: gate, validator: validator, logger: logger}
}

// List returns the visible books matching f.
func (s *CatalogService) List(ctx context.Context, f BookFilter) ([]domain.Product, error) {
	page := f.Page
	if page.Number < 1 || page.Size < 1 {
		page = domain.DefaultPage
	}
	books, err := s.catalog.ListBooks(ctx, page)
	if err != nil {
		return nil, err
	}
	books = s.gate.FilterProducts(books)

	out := books[:0]
	search := strings.ToLower(strings.TrimSpace(f.Search))
	for _, b := range books {
		if f.Category != "" && domain.NormalizeKey(b.Category) != domain.NormalizeKey(f.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Title), search) &&
			!strings.Contains(strings.ToLower(b.Author), search) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Get returns a visible book. Books in hidden categories are not found.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Product, error) {
	b, err := s.catalog.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.gate.IsCategoryVisible(b.Category) {
		return nil, fmt.Errorf("book %s: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

// AdminList returns every book regardless of visibility.
func (s *CatalogService) AdminList(ctx context.Context, page domain.Page) ([]domain.Product, error) {
	if page.Number < 1 || page.Size < 1 {
		page = domain.DefaultPage
	}
	return s.catalog.ListBooks(ctx, page)
}

// Create adds a book to the catalog.
func (s *CatalogService) Create(ctx context.Context, in domain.BookInput) (*domain.Product, error) {
	if err := s.validateBook(in); err != nil {
		return nil, err
	}
	return s.catalog.CreateBook(ctx, in)
}

// Update replaces a catalog book.
func (s *CatalogService) Update(ctx context.Context, id string, in domain.BookInput) (*domain.Product, error) {
	if err := s.validateBook(in); err != nil {
		return nil, err
	}
	return s.catalog.UpdateBook(ctx, id, in)
}

// Delete removes a catalog book.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	return s.catalog.DeleteBook(ctx, id)
}

func (s *CatalogService) validateBook(in domain.BookInput) error {
	if err := s.validator.Struct(in); err != nil {
		return err
	}
	if !in.Price.IsPositive() {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "price", Message: ErrInvalidPrice.Error()}}}
	}
	return nil
}
