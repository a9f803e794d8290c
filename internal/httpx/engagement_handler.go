package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/engagement"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Engagement interface {
	AddFavorite(ctx context.Context, userID, productID int64) error
	RemoveFavorite(ctx context.Context, userID, productID int64) error
	Favorites(ctx context.Context, userID int64) ([]engagement.FavoriteView, error)
	Review(ctx context.Context, userID, productID int64, rating int, comment string) (engagement.Review, error)
	Subscribe(ctx context.Context, email, name string) (engagement.Subscriber, bool, error)
	Unsubscribe(ctx context.Context, email string) error
	Contact(ctx context.Context, m engagement.ContactMessage) (engagement.ContactMessage, error)
}

type EngagementHandler struct {
	Engagement Engagement
	Log        *zap.Logger
}

func (h *EngagementHandler) Register(r chi.Router) {
	r.Post("/newsletter", h.subscribe)
	r.Delete("/newsletter", h.unsubscribe)
	r.Post("/contact", h.contact)
	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/favorites", h.favorites)
		r.Post("/favorites/{product_id}", h.addFavorite)
		r.Delete("/favorites/{product_id}", h.removeFavorite)
		r.Post("/review/{product_id}", h.review)
	})
}

func (h *EngagementHandler) favorites(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	favs, err := h.Engagement.Favorites(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

func (h *EngagementHandler) addFavorite(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	pid, err := pathID(r, "product_id")
	if err == nil {
		err = h.Engagement.AddFavorite(r.Context(), uid, pid)
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "product_id": pid, "is_favorite": true})
}

func (h *EngagementHandler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	pid, err := pathID(r, "product_id")
	if err == nil {
		err = h.Engagement.RemoveFavorite(r.Context(), uid, pid)
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "product_id": pid, "is_favorite": false})
}

type reviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *EngagementHandler) review(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	pid, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in := reviewReq{Rating: 5}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	rv, err := h.Engagement.Review(r.Context(), uid, pid, in.Rating, in.Comment)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

type newsletterReq struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *EngagementHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	var in newsletterReq
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	s, created, err := h.Engagement.Subscribe(r.Context(), in.Email, in.Name)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, s)
}

func (h *EngagementHandler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var in newsletterReq
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Engagement.Unsubscribe(r.Context(), in.Email); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type contactReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (h *EngagementHandler) contact(w http.ResponseWriter, r *http.Request) {
	var in contactReq
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	m, err := h.Engagement.Contact(r.Context(), engagement.ContactMessage{
		Name: in.Name, Email: in.Email, Subject: in.Subject, Message: in.Message,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": m.ID})
}
