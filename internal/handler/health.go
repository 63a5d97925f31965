package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/utellme/utellme/internal/rpc"
)

type HealthHandler struct {
	db *sqlx.DB
}

func NewHealthHandler(db *sqlx.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check reports whether the database is reachable.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		slog.ErrorContext(ctx, "health check failed", "error", err)
		rpc.WriteData(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	rpc.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
}
