package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"blockmarket/internal/market/service"
	"blockmarket/internal/order"
	"blockmarket/pkg/middleware"
)

type Handler struct {
	Service *service.Service
	log     *zap.Logger
}

func NewMarketHandler(s *service.Service, log *zap.Logger) *Handler {
	return &Handler{Service: s, log: log.Named("market_http")}
}

func (h *Handler) Wholeblock(w http.ResponseWriter, r *http.Request) {
	h.markets(w, r, order.MarketWholeblock)
}

func (h *Handler) Preconf(w http.ResponseWriter, r *http.Request) {
	h.markets(w, r, order.MarketInclusionPreconf)
}

func (h *Handler) markets(w http.ResponseWriter, r *http.Request, mt order.MarketType) {
	snap, err := h.Service.Markets(r.Context(), mt)
	if err != nil {
		h.log.Warn("market data unavailable", zap.String("market_type", string(mt)), zap.Error(err))
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Trades GET /market/trades?marketType=wholeblock|preconf
func (h *Handler) Trades(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("marketType")
	if raw == "" {
		raw = r.URL.Query().Get("type")
	}
	mt, ok := order.ParseMarketType(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "marketType must be wholeblock or preconf")
		return
	}

	trades, err := h.Service.Trades(r.Context(), mt)
	if err != nil {
		h.log.Warn("trades unavailable", zap.String("market_type", string(mt)), zap.Error(err))
		writeError(w, http.StatusBadGateway, "trades unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marketType": mt, "trades": trades})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, middleware.ErrorResponse{Error: msg})
}
