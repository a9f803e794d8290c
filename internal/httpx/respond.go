package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBody = 1 << 20

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status. Server-side failures are logged with the
// cause; the client only sees the safe message.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, code, errorBody{Message: apperr.Message(err)})
}

// decodeJSON reads one JSON object and rejects fields the endpoint does not know.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.InvalidArgument("invalid request body: " + err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidArgument("invalid " + name)
	}
	return id, nil
}
