package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bookstore/internal/domain"
)

// DefaultCondition is sent when a book is created without a condition.
const DefaultCondition = "novo"

// CatalogClient implements domain.CatalogGateway.
type CatalogClient struct {
	api *Client
}

// NewCatalogClient returns a catalog gateway over c.
func NewCatalogClient(c *Client) *CatalogClient {
	return &CatalogClient{api: c}
}

type bookWire struct {
	ID            wireID          `json:"id"`
	Titulo        string          `json:"titulo"`
	Autor         string          `json:"autor"`
	ISBN          string          `json:"isbn"`
	Editora       string          `json:"editora"`
	AnoPublicacao int             `json:"ano_publicacao"`
	NumeroPaginas int             `json:"numero_paginas"`
	Sinopse       string          `json:"sinopse"`
	ImagemURL     string          `json:"imagem_url"`
	Preco         decimal.Decimal `json:"preco"`
	Estoque       int             `json:"estoque"`
	Categoria     string          `json:"categoria"`
	Condicao      string          `json:"condicao"`
	Ativo         *bool           `json:"ativo"`
}

func (b bookWire) active() bool { return b.Ativo == nil || *b.Ativo }

func (b bookWire) toDomain() (domain.Product, bool) {
	p := domain.Product{
		ID:          string(b.ID),
		Title:       b.Titulo,
		Author:      b.Autor,
		Price:       b.Preco,
		Category:    strings.ToUpper(strings.TrimSpace(b.Categoria)),
		Stock:       b.Estoque,
		CoverURL:    b.ImagemURL,
		ISBN:        b.ISBN,
		Publisher:   b.Editora,
		Year:        b.AnoPublicacao,
		Pages:       b.NumeroPaginas,
		Description: b.Sinopse,
		Condition:   b.Condicao,
	}
	return p, p.ID != "" && p.Title != "" && !p.Price.IsNegative()
}

type bookList struct {
	Items []bookWire `json:"items"`
	Total int        `json:"total"`
}

// bookInputWire is the create/update body. Optional fields are omitted when
// empty so the collaborator's own defaults apply.
type bookInputWire struct {
	Titulo        string      `json:"titulo"`
	Autor         string      `json:"autor"`
	ISBN          string      `json:"isbn"`
	Editora       string      `json:"editora,omitempty"`
	AnoPublicacao int         `json:"ano_publicacao,omitempty"`
	NumeroPaginas int         `json:"numero_paginas,omitempty"`
	Sinopse       string      `json:"sinopse,omitempty"`
	ImagemURL     string      `json:"imagem_url,omitempty"`
	Preco         json.Number `json:"preco"`
	Estoque       int         `json:"estoque"`
	Categoria     string      `json:"categoria"`
	Condicao      string      `json:"condicao"`
}

func newBookInputWire(in domain.BookInput) bookInputWire {
	cond := strings.ToLower(strings.TrimSpace(in.Condition))
	if cond == "" {
		cond = DefaultCondition
	}
	return bookInputWire{
		Titulo:        strings.TrimSpace(in.Title),
		Autor:         strings.TrimSpace(in.Author),
		ISBN:          strings.TrimSpace(in.ISBN),
		Editora:       in.Publisher,
		AnoPublicacao: in.Year,
		NumeroPaginas: in.Pages,
		Sinopse:       in.Description,
		ImagemURL:     in.CoverURL,
		Preco:         money(in.Price),
		Estoque:       in.Stock,
		Categoria:     strings.ToUpper(strings.TrimSpace(in.Category)),
		Condicao:      cond,
	}
}

// ListBooks returns the active books of one page. Entries that fail
// validation are dropped and logged.
func (c *CatalogClient) ListBooks(ctx context.Context, page domain.Page) ([]domain.Product, error) {
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size < 1 {
		page.Size = domain.DefaultPage.Size
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page.Number))
	q.Set("page_size", strconv.Itoa(page.Size))

	var res bookList
	if err := c.api.do(ctx, http.MethodGet, "/livros", q, nil, &res); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(res.Items))
	for _, b := range res.Items {
		if !b.active() {
			continue
		}
		p, ok := b.toDomain()
		if !ok {
			c.api.logger.Warn("dropping malformed book", "service", c.api.service, "id", b.ID)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// GetBook returns one book. Inactive books are reported as not found.
func (c *CatalogClient) GetBook(ctx context.Context, id string) (*domain.Product, error) {
	var res bookWire
	if err := c.api.do(ctx, http.MethodGet, "/livros/"+url.PathEscape(id), nil, nil, &res); err != nil {
		return nil, err
	}
	if !res.active() {
		return nil, domain.ErrNotFound
	}
	return c.book(res)
}

// CreateBook adds a book to the catalog.
func (c *CatalogClient) CreateBook(ctx context.Context, in domain.BookInput) (*domain.Product, error) {
	var res bookWire
	if err := c.api.do(ctx, http.MethodPost, "/livros", nil, newBookInputWire(in), &res); err != nil {
		return nil, err
	}
	return c.book(res)
}

// UpdateBook replaces the editable fields of a book.
func (c *CatalogClient) UpdateBook(ctx context.Context, id string, in domain.BookInput) (*domain.Product, error) {
	var res bookWire
	if err := c.api.do(ctx, http.MethodPut, "/livros/"+url.PathEscape(id), nil, newBookInputWire(in), &res); err != nil {
		return nil, err
	}
	return c.book(res)
}

// DeleteBook removes a book.
func (c *CatalogClient) DeleteBook(ctx context.Context, id string) error {
	return c.api.do(ctx, http.MethodDelete, "/livros/"+url.PathEscape(id), nil, nil, nil)
}

func (c *CatalogClient) book(res bookWire) (*domain.Product, error) {
	p, ok := res.toDomain()
	if !ok {
		return nil, c.api.unexpected("book without id, title or price")
	}
	return &p, nil
}
