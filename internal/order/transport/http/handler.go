package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"blockmarket/internal/api/dto"
	"blockmarket/internal/order"
	"blockmarket/internal/order/service"
	"blockmarket/pkg/middleware"
)

// Engine сервис ордеров, как его видят хендлеры
type Engine interface {
	PlaceOrder(ctx context.Context, owner int64, in service.PlaceInput) (*order.Order, error)
	SyncOrders(ctx context.Context, owner int64, marketType *order.MarketType) ([]*order.Order, error)
	CancelOrder(ctx context.Context, owner int64, id string) (*order.Order, error)
}

type Handler struct {
	Engine Engine
	log    *zap.Logger
}

func NewOrderHandler(engine Engine, log *zap.Logger) *Handler {
	return &Handler{Engine: engine, log: log.Named("orders_http")}
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req dto.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.Engine.PlaceOrder(r.Context(), userID, service.PlaceInput{
		MarketType:   order.MarketType(req.MarketType),
		InstrumentID: req.InstrumentID,
		Side:         order.Side(req.Side),
		OrderType:    req.OrderType,
		Price:        req.Price,
		Quantity:     req.Quantity,
		Passive:      req.Passive,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": o})
}

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var filter *order.MarketType
	if raw := r.URL.Query().Get("marketType"); raw != "" {
		mt, ok := order.ParseMarketType(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "marketType must be wholeblock or inclusion-preconf")
			return
		}
		filter = &mt
	}

	// Сначала синхронизация с биржей, затем локальный список
	orders, err := h.Engine.SyncOrders(r.Context(), userID, filter)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req dto.CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.Engine.CancelOrder(r.Context(), userID, req.OrderID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": o})
}

// writeEngineError переводит ошибки движка в HTTP статусы
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrExchangeAuthRequired):
		writeError(w, http.StatusUnauthorized, "ETHGas authentication required, please login again")
	case errors.Is(err, service.ErrNoTradingAccount):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not authorized to cancel this order")
	case errors.Is(err, service.ErrNotSynced):
		writeError(w, http.StatusConflict, "order not synced with ETHGas yet")
	// Отказ биржи отдаём как 400 с её сообщением
	case errors.Is(err, service.ErrExchangeRejected):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("order request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, middleware.ErrorResponse{Error: msg})
}
