package engagement

import (
	"context"
	"net/mail"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"go.uber.org/zap"
)

type Store interface {
	AddFavorite(ctx context.Context, userID, productID int64) (bool, error)
	RemoveFavorite(ctx context.Context, userID, productID int64) error
	ListFavorites(ctx context.Context, userID int64) ([]Favorite, error)
	IsFavorite(ctx context.Context, userID, productID int64) (bool, error)
	UpsertReview(ctx context.Context, rv *Review) error
	ListReviews(ctx context.Context, productID int64) ([]Review, error)
	ReviewSummary(ctx context.Context, productID int64) (ReviewSummary, error)
	Subscribe(ctx context.Context, email, name string) (Subscriber, bool, error)
	Unsubscribe(ctx context.Context, email string) error
	CreateContact(ctx context.Context, m *ContactMessage) error
}

// Products resolves favorites to catalog entries; catalog.Service satisfies it.
type Products interface {
	Product(ctx context.Context, id int64) (catalog.Product, error)
}

type Service struct {
	store    Store
	products Products
	log      *zap.Logger
}

func NewService(store Store, products Products, log *zap.Logger) *Service {
	return &Service{store: store, products: products, log: log}
}

func (s *Service) AddFavorite(ctx context.Context, userID, productID int64) error {
	added, err := s.store.AddFavorite(ctx, userID, productID)
	if err != nil {
		return err
	}
	if added {
		s.log.Debug("favorite added", zap.Int64("user_id", userID), zap.Int64("product_id", productID))
	}
	return nil
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, productID int64) error {
	return s.store.RemoveFavorite(ctx, userID, productID)
}

// Favorites lists the user's favorites, newest first. Products deleted since are skipped.
func (s *Service) Favorites(ctx context.Context, userID int64) ([]FavoriteView, error) {
	favs, err := s.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]FavoriteView, 0, len(favs))
	for _, f := range favs {
		p, err := s.products.Product(ctx, f.ProductID)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		v := catalog.NewView(p)
		v.IsFavorite = true
		out = append(out, FavoriteView{AddedAt: f.AddedAt, Product: v})
	}
	return out, nil
}

func (s *Service) IsFavorite(ctx context.Context, userID, productID int64) (bool, error) {
	return s.store.IsFavorite(ctx, userID, productID)
}

func (s *Service) Review(ctx context.Context, userID, productID int64, rating int, comment string) (Review, error) {
	if rating < 1 || rating > 5 {
		return Review{}, apperr.Validation("rating must be between 1 and 5")
	}
	rv := Review{ProductID: productID, UserID: userID, Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := s.store.UpsertReview(ctx, &rv); err != nil {
		return Review{}, err
	}
	return rv, nil
}

type ReviewList struct {
	ReviewSummary
	Reviews []Review `json:"reviews"`
}

func (s *Service) Reviews(ctx context.Context, productID int64) (ReviewList, error) {
	sum, err := s.store.ReviewSummary(ctx, productID)
	if err != nil {
		return ReviewList{}, err
	}
	rvs, err := s.store.ListReviews(ctx, productID)
	if err != nil {
		return ReviewList{}, err
	}
	return ReviewList{ReviewSummary: sum, Reviews: rvs}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Validation("invalid email address")
	}
	return email, nil
}

func (s *Service) Subscribe(ctx context.Context, email, name string) (Subscriber, bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Subscriber{}, false, err
	}
	return s.store.Subscribe(ctx, email, strings.TrimSpace(name))
}

func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	return s.store.Unsubscribe(ctx, email)
}

func (s *Service) Contact(ctx context.Context, m ContactMessage) (ContactMessage, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Message = strings.TrimSpace(m.Message)

	var missing []string
	for _, f := range []struct{ name, v string }{
		{"name", m.Name}, {"email", m.Email}, {"subject", m.Subject}, {"message", m.Message},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return ContactMessage{}, apperr.Validation("missing required fields: " + strings.Join(missing, ", "))
	}
	email, err := normalizeEmail(m.Email)
	if err != nil {
		return ContactMessage{}, err
	}
	m.Email = email

	if err := s.store.CreateContact(ctx, &m); err != nil {
		return ContactMessage{}, err
	}
	s.log.Info("contact message received", zap.Int64("id", m.ID), zap.String("subject", m.Subject))
	return m, nil
}
