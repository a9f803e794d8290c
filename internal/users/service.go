package users

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 8
	defaultCountry = "Côte d'Ivoire"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.@+-]{3,150}$`)

type Store interface {
	CreateUser(ctx context.Context, u *User, passwordHash string) error
	GetProfile(ctx context.Context, userID int64) (Profile, error)
	UpdateProfile(ctx context.Context, userID int64, u ProfileUpdate, birth *time.Time) error
	UpdatePreferences(ctx context.Context, userID int64, p Preferences) error
	ListAddresses(ctx context.Context, userID int64) ([]Address, error)
	AddAddress(ctx context.Context, a *Address) error
	DeleteAddress(ctx context.Context, userID, id int64) error
	SetDefault(ctx context.Context, userID, id int64) (Address, error)
}

type StatsSource interface {
	UserStats(ctx context.Context, userID int64) (orders.UserStats, error)
}

// ProfileView is what the profile page renders.
type ProfileView struct {
	Profile
	FullAddress string           `json:"full_address"`
	Stats       orders.UserStats `json:"stats"`
	Addresses   []Address        `json:"addresses"`
}

type Service struct {
	store      Store
	stats      StatsSource
	log        *zap.Logger
	bcryptCost int
}

func NewService(store Store, stats StatsSource, log *zap.Logger) *Service {
	return &Service{store: store, stats: stats, log: log, bcryptCost: bcrypt.DefaultCost}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if !usernameRe.MatchString(in.Username) {
		return User{}, apperr.Validation("username must be 3-150 letters, digits or @.+-_")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return User{}, apperr.Validation("invalid email address")
	}
	if len(in.Password) < minPasswordLen {
		return User{}, apperr.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	u := User{Username: in.Username, Email: in.Email, FirstName: in.FirstName, LastName: in.LastName}
	if err := s.store.CreateUser(ctx, &u, string(hash)); err != nil {
		return User{}, err
	}
	s.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (ProfileView, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return ProfileView{}, err
	}
	stats, err := s.stats.UserStats(ctx, userID)
	if err != nil {
		return ProfileView{}, err
	}
	addrs, err := s.store.ListAddresses(ctx, userID)
	if err != nil {
		return ProfileView{}, err
	}
	return ProfileView{Profile: p, FullAddress: p.FullAddress(), Stats: stats, Addresses: addrs}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, u ProfileUpdate) (Profile, error) {
	for _, f := range []*string{&u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.Address, &u.City, &u.Country, &u.Zipcode, &u.BirthDate} {
		*f = strings.TrimSpace(*f)
	}
	u.Email = strings.ToLower(u.Email)
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return Profile{}, apperr.Validation("invalid email address")
	}
	if u.Country == "" {
		u.Country = defaultCountry
	}
	var birth *time.Time
	if u.BirthDate != "" {
		d, err := time.Parse(time.DateOnly, u.BirthDate)
		if err != nil {
			return Profile{}, apperr.Validation("birth_date must be YYYY-MM-DD")
		}
		birth = &d
	}
	if err := s.store.UpdateProfile(ctx, userID, u, birth); err != nil {
		return Profile{}, err
	}
	return s.store.GetProfile(ctx, userID)
}

func (s *Service) UpdatePreferences(ctx context.Context, userID int64, p Preferences) (Profile, error) {
	if err := s.store.UpdatePreferences(ctx, userID, p); err != nil {
		return Profile{}, err
	}
	return s.store.GetProfile(ctx, userID)
}

func (s *Service) Addresses(ctx context.Context, userID int64) ([]Address, error) {
	return s.store.ListAddresses(ctx, userID)
}

func (s *Service) AddAddress(ctx context.Context, userID int64, a Address) (Address, error) {
	a.UserID = userID
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Address = strings.TrimSpace(a.Address)
	a.City = strings.TrimSpace(a.City)
	a.Country = strings.TrimSpace(a.Country)
	a.Zipcode = strings.TrimSpace(a.Zipcode)

	var missing []string
	for _, f := range []struct{ name, v string }{
		{"full_name", a.FullName}, {"phone", a.Phone}, {"address", a.Address}, {"city", a.City},
	} {
		if f.v == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Address{}, apperr.Validation("missing required fields: " + strings.Join(missing, ", "))
	}
	if a.Country == "" {
		a.Country = defaultCountry
	}
	switch a.Type {
	case "":
		a.Type = AddressHome
	case AddressHome, AddressWork, AddressOther:
	default:
		return Address{}, apperr.Validation("address_type must be home, work or other")
	}

	if err := s.store.AddAddress(ctx, &a); err != nil {
		return Address{}, err
	}
	return a, nil
}

func (s *Service) DeleteAddress(ctx context.Context, userID, id int64) error {
	return s.store.DeleteAddress(ctx, userID, id)
}

func (s *Service) SetDefaultAddress(ctx context.Context, userID, id int64) (Address, error) {
	a, err := s.store.SetDefault(ctx, userID, id)
	if err != nil {
		return Address{}, err
	}
	s.log.Info("default address changed", zap.Int64("user_id", userID), zap.Int64("address_id", id))
	return a, nil
}
