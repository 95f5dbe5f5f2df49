package adapthttp

import (
	"net/http"
	"strings"

	"bookstore/internal/app"
	"bookstore/internal/domain"
)

func cartView(c *app.Cart) domain.CartSummary {
	sum := c.Summary()
	if sum.Items == nil {
		sum.Items = []domain.CartEntry{}
	}
	return sum
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	cart := visitorFrom(r.Context()).Cart
	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		if err := s.kept(r, cart.Clear(r.Context())); err != nil {
			s.fail(w, r, err)
			return
		}
	default:
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, cartView(cart))
}

// handleCartItems adds one unit of a catalog book. The cart stores the
// book as the catalog returned it.
func (s *Server) handleCartItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeError(w, http.StatusBadRequest, &domain.ValidationError{
			Fields: []domain.FieldError{{Field: "productId", Message: "is required"}},
		})
		return
	}

	book, err := s.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cart := visitorFrom(r.Context()).Cart
	if err := s.kept(r, cart.Add(r.Context(), *book)); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(cart))
}

func (s *Server) handleCartItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	cart := visitorFrom(r.Context()).Cart
	if err := s.kept(r, cart.Remove(r.Context(), r.PathValue("id"))); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(cart))
}

func (s *Server) handleCartItemAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	cart := visitorFrom(r.Context()).Cart
	id := r.PathValue("id")

	var err error
	switch r.PathValue("action") {
	case "increment":
		err = cart.Increment(r.Context(), id)
	case "decrement":
		err = cart.Decrement(r.Context(), id)
	default:
		http.NotFound(w, r)
		return
	}
	if err = s.kept(r, err); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(cart))
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ids := visitorFrom(r.Context()).Favorites.IDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

// handleFavorite toggles one product id.
func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	favorite, err := visitorFrom(r.Context()).Favorites.Toggle(r.Context(), id)
	if err = s.kept(r, err); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "favorite": favorite})
}
