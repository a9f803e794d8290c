package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/engagement"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Catalog interface {
	Categories(ctx context.Context) ([]catalog.Category, error)
	List(ctx context.Context, q catalog.ListQuery) (catalog.Page, error)
	Product(ctx context.Context, id int64) (catalog.Product, error)
	Related(ctx context.Context, p catalog.Product) ([]catalog.ProductView, error)
}

// ProductExtras adds the per-product engagement data shown on the detail page.
type ProductExtras interface {
	Reviews(ctx context.Context, productID int64) (engagement.ReviewList, error)
	IsFavorite(ctx context.Context, userID, productID int64) (bool, error)
}

type CatalogHandler struct {
	Catalog Catalog
	Extras  ProductExtras
	Log     *zap.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/", h.listing(catalog.HomePageSize))
	r.Get("/products", h.listing(catalog.ListingPageSize))
	r.Get("/search", h.listing(catalog.ListingPageSize))
	r.Get("/categories", h.categories)
	r.With(OptionalUser).Get("/detail/{id}", h.detail)
}

type listingResp struct {
	catalog.Page
	Categories []catalog.Category `json:"categories"`
	Search     string             `json:"search,omitempty"`
	Sort       catalog.Sort       `json:"sort"`
}

func (h *CatalogHandler) listing(pageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := catalog.ParseListQuery(r.URL.Query(), pageSize)
		page, err := h.Catalog.List(r.Context(), q)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		cats, err := h.Catalog.Categories(r.Context())
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, listingResp{Page: page, Categories: cats, Search: q.Search, Sort: q.Sort})
	}
}

func (h *CatalogHandler) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Catalog.Categories(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

type detailResp struct {
	Product catalog.ProductView   `json:"product"`
	Related []catalog.ProductView `json:"related"`
	engagement.ReviewList
}

func (h *CatalogHandler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx := r.Context()
	p, err := h.Catalog.Product(ctx, id)
	if err == nil && !p.IsActive {
		err = apperr.NotFound("product not found")
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	view := catalog.NewView(p)
	if uid, ok := UserID(ctx); ok {
		if view.IsFavorite, err = h.Extras.IsFavorite(ctx, uid, id); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	}
	related, err := h.Catalog.Related(ctx, p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	reviews, err := h.Extras.Reviews(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResp{Product: view, Related: related, ReviewList: reviews})
}
