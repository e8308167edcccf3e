package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexex18/Restorical-Wisconsin/cache"
	"github.com/nexex18/Restorical-Wisconsin/models"
)

// Version reported by the info and health payloads.
const Version = "0.1.0"

// Relayer is the slice of the relay the handlers need.
type Relayer interface {
	Relay(ctx context.Context, req *models.RelayRequest) (*models.RelayResponse, error)
}

// Relay returns the handler for GET / and GET /api/v1/relay.
//
// Flow:
//  1. Bind query params (dsn, format, max_age).
//  2. No dsn → static info payload, no upstream activity.
//  3. Cache lookup (only when max_age > 0).
//  4. Relayer.Relay — validation, primary fetch, harvest, fan-out.
//  5. 200 on success, 400 on malformed dsn, 502 on upstream failure.
func Relay(rl Relayer, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.RelayRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.RelayResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		// ── 2. No identifier: side-effect-free info payload ─────────
		if req.DSN == "" {
			c.JSON(http.StatusOK, infoPayload())
			return
		}
		req.Defaults()

		// ── 3. Cache lookup ─────────────────────────────────────────
		cacheKey := cache.Key(req.DSN, req.Format)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing.TotalMs = time.Since(totalStart).Milliseconds()
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		// ── 4. Relay ────────────────────────────────────────────────
		resp, err := rl.Relay(c.Request.Context(), &req)
		if err != nil {
			respondError(c, req.DSN, err)
			return
		}

		// Primary fetch answered but with an error status: the payload
		// carries the upstream status so the caller can distinguish a
		// missing record from a transport fault.
		if !resp.Success {
			c.JSON(http.StatusBadGateway, resp)
			return
		}

		// ── 5. Cache store + respond ────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			cc.Set(cacheKey, resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// infoPayload is the static response for a request without a dsn.
func infoPayload() models.InfoResponse {
	return models.InfoResponse{
		Service:   "brrts-session-relay",
		Version:   Version,
		Usage:     "GET /?dsn=<detail sequence number, digits only>",
		Endpoints: models.EndpointNames,
	}
}

// respondError maps a RelayError to the correct HTTP status code and
// writes a structured JSON error response bundling the identifier.
func respondError(c *gin.Context, dsn string, err error) {
	var relayErr *models.RelayError
	if !errors.As(err, &relayErr) {
		relayErr = models.NewRelayError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(relayErr), models.RelayResponse{
		Success: false,
		DSN:     dsn,
		Error:   relayErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.RelayError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUpstream, models.ErrCodeTimeout:
		return http.StatusBadGateway // 502
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
