package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price-asc"
	SortPriceDesc Sort = "price-desc"
	SortName      Sort = "name"
)

var orderBy = map[Sort]string{
	SortNewest:    "p.created_at DESC, p.id DESC",
	SortPriceAsc:  "p.price ASC, p.id",
	SortPriceDesc: "p.price DESC, p.id",
	SortName:      "p.title ASC, p.id",
}

const (
	HomePageSize    = 8
	ListingPageSize = 12
	maxPageSize     = 100
)

type ListQuery struct {
	Search      string
	CategoryIDs []int64
	Sort        Sort
	Page        int
	PageSize    int
}

// ParseListQuery reads search/q, category, categories (csv), sort and page.
// Garbage values fall back to defaults instead of failing the page.
func ParseListQuery(v url.Values, pageSize int) ListQuery {
	q := ListQuery{
		Search:   strings.TrimSpace(v.Get("search")),
		Sort:     Sort(v.Get("sort")),
		PageSize: pageSize,
	}
	if q.Search == "" {
		q.Search = strings.TrimSpace(v.Get("q"))
	}
	q.Page, _ = strconv.Atoi(v.Get("page"))

	ids := v.Get("categories")
	if c := v.Get("category"); c != "" {
		ids = c + "," + ids
	}
	for _, s := range strings.Split(ids, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil && id > 0 {
			q.CategoryIDs = append(q.CategoryIDs, id)
		}
	}
	return q.Normalize()
}

func (q ListQuery) Normalize() ListQuery {
	if _, ok := orderBy[q.Sort]; !ok {
		q.Sort = SortNewest
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = ListingPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	return q
}

func (q ListQuery) Offset() int { return (q.Page - 1) * q.PageSize }

// likeEscaper makes user text match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// where builds the filter clause for active products and its positional args.
func (q ListQuery) where() (string, []any) {
	clauses := []string{"p.is_active"}
	var args []any
	if q.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(q.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			`(p.title ILIKE $%[1]d ESCAPE '\' OR p.description ILIKE $%[1]d ESCAPE '\' OR c.name ILIKE $%[1]d ESCAPE '\')`, n))
	}
	if len(q.CategoryIDs) > 0 {
		args = append(args, q.CategoryIDs)
		clauses = append(clauses, fmt.Sprintf("p.category_id = ANY($%d)", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

type Page struct {
	Items      []ProductView `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

func newPage(items []ProductView, q ListQuery, total int) Page {
	pages := (total + q.PageSize - 1) / q.PageSize
	if pages == 0 {
		pages = 1
	}
	return Page{Items: items, Page: q.Page, PageSize: q.PageSize, Total: total, TotalPages: pages}
}
