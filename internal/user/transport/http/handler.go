package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"blockmarket/internal/api/dto"
	"blockmarket/internal/user"
	"blockmarket/internal/user/service"
	"blockmarket/pkg/middleware"
)

type Handler struct {
	UserService *service.UserService
	JWT         *service.JWTManager
	log         *zap.Logger
}

func NewHandler(us *service.UserService, jwtSecret string, log *zap.Logger) *Handler {
	return &Handler{
		UserService: us,
		JWT:         service.NewJWTManager(jwtSecret),
		log:         log.Named("auth_http"),
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ch, err := h.UserService.Login(r.Context(), req.Address)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.UserService.Verify(r.Context(), req.Address, req.Signature, req.NonceHash)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	token, err := h.JWT.Generate(u.ID, u.Address)
	if err != nil {
		h.log.Error("failed to sign session token", zap.Int64("user_id", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "token error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  map[string]any{"id": u.ID, "address": u.Address},
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := h.UserService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.log.Error("failed to load user", zap.Int64("user_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	resp := map[string]any{"id": u.ID, "address": u.Address}
	profile, err := h.UserService.ExchangeProfile(r.Context(), id)
	switch {
	case err == nil:
		resp["exchange"] = profile
	case !errors.Is(err, user.ErrNoExchangeToken):
		h.log.Warn("exchange profile unavailable", zap.Int64("user_id", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrLoginFailed):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		h.log.Error("auth request failed", zap.Error(err))
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
