package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/videomaster/checkout-service/internal/catalog"
)

// CatalogHandler serves the read-only product catalog the checkout sells from.
type CatalogHandler struct {
	Repo *catalog.Repo
	Log  *slog.Logger
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Repo.List(r.Context())
	if err != nil {
		h.Log.Error("list products", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("get product", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
