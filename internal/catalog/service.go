package catalog

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relatedLimit = 4

type Reader interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, q ListQuery) (Page, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	RelatedProducts(ctx context.Context, p Product, limit int) ([]ProductView, error)
}

// Service fronts the catalog with a read-through redis cache for categories and
// single products. Listings are not cached since search terms make keys unbounded.
// Cache failures degrade to the database.
type Service struct {
	repo  Reader
	redis *redis.Client
	log   *zap.Logger
}

func NewService(repo Reader, rdb *redis.Client, log *zap.Logger) *Service {
	return &Service{repo: repo, redis: rdb, log: log}
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var cached []Category
	if ok, err := redisx.GetJSON(ctx, s.redis, redisx.KeyCategories, &cached); err != nil {
		s.log.Warn("categories cache read", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if err := redisx.SetJSON(ctx, s.redis, redisx.KeyCategories, cats, redisx.TTLCategories); err != nil {
		s.log.Warn("categories cache write", zap.Error(err))
	}
	return cats, nil
}

func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	return s.repo.ListProducts(ctx, q)
}

func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	key := fmt.Sprintf(redisx.KeyProduct, id)
	var cached Product
	if ok, err := redisx.GetJSON(ctx, s.redis, key, &cached); err != nil {
		s.log.Warn("product cache read", zap.Int64("product_id", id), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := redisx.SetJSON(ctx, s.redis, key, p, redisx.TTLProduct); err != nil {
		s.log.Warn("product cache write", zap.Int64("product_id", id), zap.Error(err))
	}
	return p, nil
}

func (s *Service) Related(ctx context.Context, p Product) ([]ProductView, error) {
	return s.repo.RelatedProducts(ctx, p, relatedLimit)
}

// Invalidate drops the cached product, e.g. after fulfillment changed its stock.
func (s *Service) Invalidate(ctx context.Context, id int64) error {
	return s.redis.Del(ctx, fmt.Sprintf(redisx.KeyProduct, id)).Err()
}
