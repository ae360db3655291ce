package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Upstream    string `json:"upstream"`
	Environment string `json:"environment"`
}

// Health reports storage and upstream reachability. Only a storage failure
// makes the portal unhealthy; an unreachable upstream degrades it.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Storage: "ok", Upstream: "ok", Environment: h.cfg.Environment}
	code := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		resp.Storage = "error"
		resp.Status = "error"
		code = http.StatusServiceUnavailable
		h.log.Error().Err(err).Msg("storage ping failed")
	}

	if !h.upstreamHealthy(ctx) {
		resp.Upstream = "error"
		if code == http.StatusOK {
			resp.Status = "degraded"
		}
	}

	c.JSON(code, resp)
}

func (h HandlerSet) upstreamHealthy(ctx context.Context) bool {
	if h.upstreamStatus != nil {
		return h.upstreamStatus.UpstreamHealthy()
	}
	if err := h.client.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("upstream ping failed")
		return false
	}
	return true
}
