package users

import (
	"strings"
	"time"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
}

type Preferences struct {
	Newsletter         bool `json:"newsletter"`
	NotificationsEmail bool `json:"notifications_email"`
	NotificationsSMS   bool `json:"notifications_sms"`
}

// Profile is the account plus its extended profile row. A user without a
// profile row gets the column defaults.
type Profile struct {
	User
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	City      string     `json:"city"`
	Country   string     `json:"country"`
	Zipcode   string     `json:"zipcode"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Preferences
}

// FullAddress joins the non-empty address parts.
func (p Profile) FullAddress() string {
	var parts []string
	for _, s := range []string{p.Address, p.City, p.Zipcode, p.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

type AddressType string

const (
	AddressHome  AddressType = "home"
	AddressWork  AddressType = "work"
	AddressOther AddressType = "other"
)

type Address struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"-"`
	FullName  string      `json:"full_name"`
	Phone     string      `json:"phone"`
	Address   string      `json:"address"`
	City      string      `json:"city"`
	Country   string      `json:"country"`
	Zipcode   string      `json:"zipcode"`
	Type      AddressType `json:"address_type"`
	IsDefault bool        `json:"is_default"`
	CreatedAt time.Time   `json:"created_at"`
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ProfileUpdate replaces every editable profile field. BirthDate is YYYY-MM-DD or empty.
type ProfileUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Zipcode   string `json:"zipcode"`
	BirthDate string `json:"birth_date"`
}
