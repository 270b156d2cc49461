package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/marcogenualdo/notes-gate/internal/config"
	"github.com/marcogenualdo/notes-gate/internal/middleware"
	"github.com/marcogenualdo/notes-gate/internal/tokenstore"
)

type HealthHandler struct {
	cfg       config.Config
	store     tokenstore.Store
	provider  auth.Provider
	logger    *slog.Logger
	startTime time.Time
}

func NewHealthHandler(cfg config.Config, store tokenstore.Store, provider auth.Provider, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:       cfg,
		store:     store,
		provider:  provider,
		logger:    logger,
		startTime: time.Now(),
	}
}

type HealthResponse struct {
	Status     string           `json:"status"`
	Uptime     string           `json:"uptime"`
	TokenStore TokenStoreHealth `json:"token_store"`
	Provider   ProviderHealth   `json:"provider"`
}

type TokenStoreHealth struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type ProviderHealth struct {
	Issuer string `json:"issuer"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: "healthy",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
		TokenStore: TokenStoreHealth{
			Type: h.cfg.TokenStore.Type,
		},
		Provider: ProviderHealth{
			Issuer: h.provider.Issuer(),
		},
	}

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("token store health check failed", "request_id", middleware.RequestID(r.Context()), "error", err)
		response.TokenStore.Status = "unreachable"
		response.Status = "degraded"
	} else {
		response.TokenStore.Status = "connected"
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}
