package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderStore interface {
	orders.Store
	Get(ctx context.Context, id int64) (*orders.Order, error)
	GetForUser(ctx context.Context, id, userID int64) (*orders.Order, error)
	ListForUser(ctx context.Context, userID int64) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id int64, to orders.Status) (*orders.Order, error)
}

type Payments interface {
	Dispatch(ctx context.Context, o *orders.Order, method orders.PaymentMethod) (payment.Result, error)
}

type Callbacks interface {
	Apply(ctx context.Context, method orders.PaymentMethod, sigHeader string, body []byte, trace string) (payment.Outcome, error)
}

type OrdersHandler struct {
	Orders     OrderStore
	Builder    *orders.Builder
	Payments   Payments
	Callbacks  Callbacks
	Events     *orders.Events
	AdminToken string
	Log        *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/payment/{method}/callback", h.callback)
	r.With(RequireAdmin(h.AdminToken)).Patch("/admin/orders/{id}/status", h.updateStatus)

	r.Group(func(r chi.Router) {
		r.Use(OptionalUser)
		r.Post("/checkout/process", h.checkout)
		r.Get("/order/success/{id}", h.success)
		r.Post("/payment/{method}/{order_id}", h.pay)
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/orders", h.list)
		r.Get("/orders/{id}", h.get)
	})
}

type checkoutReq struct {
	Items         []json.RawMessage `json:"items"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
	Address       string            `json:"address"`
	City          string            `json:"city"`
	Country       string            `json:"country"`
	Zipcode       string            `json:"zipcode"`
	Notes         string            `json:"notes"`
	PaymentMethod string            `json:"payment_method"`
}

type checkoutResp struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message,omitempty"`
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	PaymentURL  string          `json:"payment_url,omitempty"`
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	cart, err := orders.NormalizeCart(req.Items)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx := r.Context()
	o, err := h.Builder.Build(ctx, userPtr(ctx), cart, orders.CheckoutInput{
		Customer: orders.Customer{
			Name: req.Name, Email: req.Email, Phone: req.Phone, Address: req.Address,
			City: req.City, Country: req.Country, Zipcode: req.Zipcode,
		},
		Notes:         req.Notes,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Events.OrderPlaced(middleware.GetReqID(ctx), o)
	h.Log.Info("order placed",
		zap.String("order_number", o.Number),
		zap.String("payment_method", string(o.PaymentMethod)),
		zap.String("total", o.Total.String()))

	h.dispatch(w, r, o, o.PaymentMethod)
}

// dispatch starts payment and writes the checkout response. A provider failure
// leaves the order pending; the body still names it so the client can retry.
func (h *OrdersHandler) dispatch(w http.ResponseWriter, r *http.Request, o *orders.Order, method orders.PaymentMethod) {
	resp := checkoutResp{OrderID: o.ID, OrderNumber: o.Number, Total: o.Total}
	res, err := h.Payments.Dispatch(r.Context(), o, method)
	if err != nil {
		code := apperr.HTTPStatus(err)
		if code >= http.StatusInternalServerError {
			h.Log.Error("payment dispatch", zap.String("order_number", o.Number), zap.Error(err))
		}
		resp.Message = apperr.Message(err)
		writeJSON(w, code, resp)
		return
	}
	resp.Success = true
	resp.RedirectURL = res.RedirectURL
	resp.PaymentURL = res.PaymentURL
	writeJSON(w, http.StatusOK, resp)
}

// accessibleOrder returns an order the caller may see: their own when signed
// in, or a guest order whose number they quote.
func (h *OrdersHandler) accessibleOrder(r *http.Request, id int64) (*orders.Order, error) {
	ctx := r.Context()
	if uid, ok := UserID(ctx); ok {
		return h.Orders.GetForUser(ctx, id, uid)
	}
	o, err := h.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != nil || !strings.EqualFold(r.URL.Query().Get("order_number"), o.Number) {
		return nil, apperr.NotFound("order not found")
	}
	return o, nil
}

type orderView struct {
	*orders.Order
	ItemsCount int `json:"items_count"`
}

func newOrderView(o *orders.Order) orderView { return orderView{Order: o, ItemsCount: o.ItemsCount()} }

func (h *OrdersHandler) success(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.accessibleOrder(r, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(o))
}

type payResp struct {
	Status      string               `json:"status"`
	Message     string               `json:"message,omitempty"`
	Method      orders.PaymentMethod `json:"method,omitempty"`
	OrderNumber string               `json:"order_number,omitempty"`
	RedirectURL string               `json:"redirect_url,omitempty"`
	PaymentURL  string               `json:"payment_url,omitempty"`
}

// payError answers the payment endpoints in their {status, message} shape.
func (h *OrdersHandler) payError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.Log.Error("payment retry",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, code, payResp{Status: "error", Message: apperr.Message(err)})
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	method, ok := orders.ParsePaymentMethod(strings.ToLower(chi.URLParam(r, "method")))
	if !ok {
		h.payError(w, r, apperr.InvalidArgument("unsupported payment method: "+chi.URLParam(r, "method")))
		return
	}
	id, err := pathID(r, "order_id")
	if err != nil {
		h.payError(w, r, err)
		return
	}
	o, err := h.accessibleOrder(r, id)
	if err != nil {
		h.payError(w, r, err)
		return
	}
	res, err := h.Payments.Dispatch(r.Context(), o, method)
	if err != nil {
		h.payError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payResp{
		Status:      "success",
		Method:      res.Method,
		OrderNumber: o.Number,
		RedirectURL: res.RedirectURL,
		PaymentURL:  res.PaymentURL,
	})
}

type callbackResp struct {
	Status        string               `json:"status"`
	Message       string               `json:"message,omitempty"`
	OrderNumber   string               `json:"order_number,omitempty"`
	PaymentStatus orders.PaymentStatus `json:"payment_status,omitempty"`
	Applied       bool                 `json:"applied"`
}

func (h *OrdersHandler) callback(w http.ResponseWriter, r *http.Request) {
	method, ok := orders.ParsePaymentMethod(chi.URLParam(r, "method"))
	if !ok {
		writeJSON(w, http.StatusNotFound, callbackResp{Status: "error", Message: "unknown provider"})
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, callbackResp{Status: "error", Message: "unreadable body"})
		return
	}
	sig := r.Header.Get(payment.SignatureHeader)
	if sig == "" {
		sig = r.Header.Get("Wave-Signature")
	}

	out, err := h.Callbacks.Apply(r.Context(), method, sig, body, middleware.GetReqID(r.Context()))
	if err != nil {
		code := apperr.HTTPStatus(err)
		if code >= http.StatusInternalServerError {
			h.Log.Error("payment callback", zap.String("method", string(method)), zap.Error(err))
		} else {
			h.Log.Warn("payment callback rejected", zap.String("method", string(method)), zap.Error(err))
		}
		writeJSON(w, code, callbackResp{Status: "error", Message: apperr.Message(err)})
		return
	}
	writeJSON(w, http.StatusOK, callbackResp{
		Status:        "success",
		OrderNumber:   out.Order.Number,
		PaymentStatus: out.Order.PaymentStatus,
		Applied:       out.Applied,
	})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	list, err := h.Orders.ListForUser(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]orderView, 0, len(list))
	for i := range list {
		out = append(out, newOrderView(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.GetForUser(r.Context(), id, uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(o))
}

type statusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req statusReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Events.StatusChange(middleware.GetReqID(r.Context()), o)
	h.Log.Info("order status changed", zap.String("order_number", o.Number), zap.String("status", string(o.Status)))
	writeJSON(w, http.StatusOK, newOrderView(o))
}
