package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/orders/internal/platform/httpx"
	"github.com/hanko-field/orders/internal/platform/pagination"
	"github.com/hanko-field/orders/internal/services"
)

const maxOrderBodySize = 64 * 1024

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID      string             `json:"customerId"`
	ShippingAddress string             `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	OrderSource     string             `json:"orderSource"`
	Notes           string             `json:"notes"`
	Items           []orderItemRequest `json:"orderItems"`
}

// updateOrderRequest distinguishes absent fields (nil) from explicit values; an explicit empty
// orderItems array is forwarded so the service can reject it.
type updateOrderRequest struct {
	ShippingAddress *string             `json:"shippingAddress"`
	Status          *string             `json:"status"`
	Notes           *string             `json:"notes"`
	Items           *[]orderItemRequest `json:"orderItems"`
	ExpectedVersion *int64              `json:"expectedVersion"`
}

type orderListResponse struct {
	Items         []services.OrderView `json:"items"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

// OrderHandlers exposes the order lifecycle over HTTP.
type OrderHandlers struct {
	orders     services.OrderService
	retryAfter time.Duration
}

// OrderHandlerOption customises OrderHandlers.
type OrderHandlerOption func(*OrderHandlers)

// WithRetryAfter sets the Retry-After hint sent when a collaborator is down, usually the breaker cooldown.
func WithRetryAfter(d time.Duration) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.retryAfter = d
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}", h.updateOrder)
	r.Delete("/{orderID}", h.deleteOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	var req createOrderRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	cmd := services.CreateOrderCommand{
		CustomerID:      strings.TrimSpace(req.CustomerID),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		PaymentMethod:   services.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		Source:          services.OrderSource(strings.ToUpper(strings.TrimSpace(req.OrderSource))),
		Notes:           req.Notes,
		Items:           toRequestedItems(req.Items),
	}

	view, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/orders/"+view.ID)
	writeOrder(w, http.StatusCreated, view)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	items := page.Items
	if items == nil {
		items = []services.OrderView{}
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	view, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeOrder(w, http.StatusOK, view)
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req updateOrderRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	cmd := services.UpdateOrderCommand{
		OrderID:         orderID,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		ExpectedVersion: req.ExpectedVersion,
	}
	if req.Status != nil {
		status := services.OrderStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		cmd.Status = &status
	}
	if req.Items != nil {
		cmd.Items = toRequestedItems(*req.Items)
	}
	if cmd.ExpectedVersion == nil {
		version, present, err := ifMatchVersion(r)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		if present {
			cmd.ExpectedVersion = &version
		}
	}

	view, err := h.orders.UpdateOrder(ctx, cmd)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeOrder(w, http.StatusOK, view)
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	view, err := h.orders.DeleteOrder(ctx, orderID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *OrderHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.orders.GetProduct(ctx, productID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, product)
}

func (h *OrderHandlers) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h == nil || h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func orderIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func toRequestedItems(items []orderItemRequest) []services.RequestedItem {
	out := make([]services.RequestedItem, 0, len(items))
	for _, item := range items {
		out = append(out, services.RequestedItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}
	return out
}

// ifMatchVersion reads a version precondition from If-Match, accepting quoted or weak tags.
func ifMatchVersion(r *http.Request) (int64, bool, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return 0, false, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version <= 0 {
		return 0, false, fmt.Errorf("If-Match must carry an order version")
	}
	return version, true, nil
}

func writeOrder(w http.ResponseWriter, status int, view services.OrderView) {
	if view.Version > 0 {
		w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(view.Version, 10)))
	}
	writeJSONResponse(w, status, view)
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderIllegalTransition):
		httpx.WriteError(ctx, w, httpx.NewError("order_illegal_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCollaboratorDown):
		httpx.WriteError(ctx, w, unavailableError("collaborator_unavailable", err, http.StatusServiceUnavailable).WithRetryAfter(h.retryAfter))
	case errors.Is(err, services.ErrProductUnavailable), errors.Is(err, services.ErrInventoryUnavailable):
		httpx.WriteError(ctx, w, unavailableError("product_unavailable", err, http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	case errors.Is(err, services.ErrOrderPersistence):
		httpx.WriteError(ctx, w, httpx.NewError("order_store_unavailable", "order store unavailable", http.StatusServiceUnavailable).WithRetryAfter(h.retryAfter))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func unavailableError(code string, err error, status int) httpx.Error {
	out := httpx.NewError(code, err.Error(), status)
	var target *services.UnavailableError
	if errors.As(err, &target) {
		out = out.WithDetails(map[string]any{
			"productId": target.ProductID,
			"quantity":  target.Quantity,
			"reason":    string(target.Reason),
		})
	}
	return out
}
