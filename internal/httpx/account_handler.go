package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/users"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Accounts interface {
	Register(ctx context.Context, in users.RegisterInput) (users.User, error)
	Profile(ctx context.Context, userID int64) (users.ProfileView, error)
	UpdateProfile(ctx context.Context, userID int64, u users.ProfileUpdate) (users.Profile, error)
	UpdatePreferences(ctx context.Context, userID int64, p users.Preferences) (users.Profile, error)
	Addresses(ctx context.Context, userID int64) ([]users.Address, error)
	AddAddress(ctx context.Context, userID int64, a users.Address) (users.Address, error)
	DeleteAddress(ctx context.Context, userID, id int64) error
	SetDefaultAddress(ctx context.Context, userID, id int64) (users.Address, error)
}

type AccountHandler struct {
	Accounts Accounts
	Log      *zap.Logger
}

func (h *AccountHandler) Register(r chi.Router) {
	r.Post("/register", h.register)
	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/profile", h.profile)
		r.Put("/profile", h.updateProfile)
		r.Put("/profile/settings", h.updateSettings)
		r.Get("/profile/addresses", h.addresses)
		r.Post("/profile/addresses", h.addAddress)
		r.Delete("/profile/addresses/{id}", h.deleteAddress)
		r.Post("/profile/addresses/{id}/default", h.setDefault)
	})
}

func (h *AccountHandler) register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *AccountHandler) profile(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	v, err := h.Accounts.Profile(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *AccountHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	var in users.ProfileUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Accounts.UpdateProfile(r.Context(), uid, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AccountHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	var in users.Preferences
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Accounts.UpdatePreferences(r.Context(), uid, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Preferences)
}

func (h *AccountHandler) addresses(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	list, err := h.Accounts.Addresses(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type addressReq struct {
	FullName  string            `json:"full_name"`
	Phone     string            `json:"phone"`
	Address   string            `json:"address"`
	City      string            `json:"city"`
	Country   string            `json:"country"`
	Zipcode   string            `json:"zipcode"`
	Type      users.AddressType `json:"address_type"`
	IsDefault bool              `json:"is_default"`
}

func (h *AccountHandler) addAddress(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	var in addressReq
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	a, err := h.Accounts.AddAddress(r.Context(), uid, users.Address{
		FullName: in.FullName, Phone: in.Phone, Address: in.Address, City: in.City,
		Country: in.Country, Zipcode: in.Zipcode, Type: in.Type, IsDefault: in.IsDefault,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AccountHandler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	id, err := pathID(r, "id")
	if err == nil {
		err = h.Accounts.DeleteAddress(r.Context(), uid, id)
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) setDefault(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	a, err := h.Accounts.SetDefaultAddress(r.Context(), uid, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
