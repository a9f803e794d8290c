package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/engagement"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCatalog struct {
	products map[int64]catalog.Product
	lastList catalog.ListQuery
}

func (f *fakeCatalog) Categories(context.Context) ([]catalog.Category, error) {
	return []catalog.Category{{ID: 1, Name: "Masques"}}, nil
}

func (f *fakeCatalog) List(_ context.Context, q catalog.ListQuery) (catalog.Page, error) {
	f.lastList = q
	items := []catalog.ProductView{}
	for _, p := range f.products {
		if p.IsActive {
			items = append(items, catalog.NewView(p))
		}
	}
	return catalog.Page{Items: items, Page: q.Page, PageSize: q.PageSize, Total: len(items), TotalPages: 1}, nil
}

func (f *fakeCatalog) Product(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, apperr.NotFound("product not found")
	}
	return p, nil
}

func (f *fakeCatalog) Related(context.Context, catalog.Product) ([]catalog.ProductView, error) {
	return []catalog.ProductView{}, nil
}

type fakeExtras struct{ favorite bool }

func (f fakeExtras) Reviews(context.Context, int64) (engagement.ReviewList, error) {
	return engagement.ReviewList{Reviews: []engagement.Review{}}, nil
}

func (f fakeExtras) IsFavorite(context.Context, int64, int64) (bool, error) { return f.favorite, nil }

func newCatalogRouter(cat *fakeCatalog, extras fakeExtras) *chi.Mux {
	r := NewRouter(zap.NewNop())
	(&CatalogHandler{Catalog: cat, Extras: extras, Log: zap.NewNop()}).Register(r)
	(&EngagementHandler{Log: zap.NewNop()}).Register(r)
	return r
}

func get(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func testCatalog() *fakeCatalog {
	old := decimal.NewFromInt(20000)
	return &fakeCatalog{products: map[int64]catalog.Product{
		1: {ID: 1, Title: "Masque Baoulé", Price: decimal.NewFromInt(15000), OldPrice: &old, Stock: 3, IsActive: true},
		2: {ID: 2, Title: "Tabouret", Price: decimal.NewFromInt(8000), IsActive: false},
	}}
}

func TestCatalogListing(t *testing.T) {
	cat := testCatalog()
	r := newCatalogRouter(cat, fakeExtras{})

	rec := get(r, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, catalog.HomePageSize, cat.lastList.PageSize)

	rec = get(r, "/search?q=masque&sort=bogus&page=-3&category=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "masque", cat.lastList.Search)
	assert.Equal(t, catalog.SortNewest, cat.lastList.Sort)
	assert.Equal(t, 1, cat.lastList.Page)
	assert.Equal(t, []int64{1}, cat.lastList.CategoryIDs)

	resp := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 1, resp["total"])
	assert.EqualValues(t, catalog.ListingPageSize, resp["page_size"])
	assert.Equal(t, "masque", resp["search"])
	assert.Len(t, resp["categories"], 1)
}

func TestCatalogDetail(t *testing.T) {
	r := newCatalogRouter(testCatalog(), fakeExtras{favorite: true})

	rec := get(r, "/detail/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	product := resp["product"].(map[string]any)
	assert.EqualValues(t, 25, product["discount_percent"])
	assert.Equal(t, false, product["is_favorite"])

	rec = get(r, "/detail/1", map[string]string{UserHeader: "9"})
	require.Equal(t, http.StatusOK, rec.Code)
	product = decodeBody[map[string]any](t, rec)["product"].(map[string]any)
	assert.Equal(t, true, product["is_favorite"])

	assert.Equal(t, http.StatusNotFound, get(r, "/detail/2", nil).Code, "inactive products are hidden")
	assert.Equal(t, http.StatusNotFound, get(r, "/detail/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/detail/abc", nil).Code)
}

func TestUserHeaderRequired(t *testing.T) {
	r := newCatalogRouter(testCatalog(), fakeExtras{})

	rec := get(r, "/favorites", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", decodeBody[errorBody](t, rec).Message)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/favorites", map[string]string{UserHeader: "abc"}).Code)
}
