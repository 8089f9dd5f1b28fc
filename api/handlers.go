package api

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"vendor-bridge/domain"
)

const mutationMaxSize = 64 * 1024 // 64 KiB

// Gateway validates mutation requests and hands them to the command queue.
type Gateway struct {
	store          Storage
	auth           Authenticator
	deduper        Deduper
	logger         *log.Logger
	enqueueRetries int
	enqueueTimeout time.Duration
}

func NewGateway(store Storage, auth Authenticator, deduper Deduper, logger *log.Logger, retries int, timeout time.Duration) *Gateway {
	if retries <= 0 {
		retries = 1
	}
	return &Gateway{
		store:          store,
		auth:           auth,
		deduper:        deduper,
		logger:         logger,
		enqueueRetries: retries,
		enqueueTimeout: timeout,
	}
}

// Register wires up all API routes on the provided Echo instance.
func (g *Gateway) Register(e *echo.Echo) {
	e.POST("/api/vendors", g.submit(domain.OperationCreate))
	e.PUT("/api/vendors", g.submit(domain.OperationUpdate))
	e.DELETE("/api/vendors", g.submit(domain.OperationDelete))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func (g *Gateway) submit(op domain.Operation) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := g.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		lr := io.LimitReader(c.Request().Body, mutationMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var req mutationRequest
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.UserContext.UserID != userID {
			return c.String(http.StatusForbidden, "user context does not match caller")
		}

		cmd := domain.Command{
			CorrelationID: uuid.NewString(),
			Operation:     op,
			Payload:       req.Payload,
			UserContext:   req.UserContext,
			EnqueuedAt:    enqueueStamp(),
		}
		if err := cmd.Validate(); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		added, err := g.deduper.Add(c.Request().Context(), cmd.CorrelationID)
		if err != nil {
			g.logger.WithError(err).Error("dedup claim failed")
			return c.String(http.StatusServiceUnavailable, "failed to accept command")
		}
		if !added {
			// fresh uuid collided with an existing claim; never reuse it
			return c.String(http.StatusServiceUnavailable, "failed to accept command")
		}

		if err := g.enqueue(c.Request().Context(), cmd); err != nil {
			if rerr := g.deduper.Remove(context.Background(), cmd.CorrelationID); rerr != nil {
				g.logger.WithError(rerr).WithField("correlationId", cmd.CorrelationID).Error("dedup rollback failed")
			}
			g.logger.WithError(err).WithField("correlationId", cmd.CorrelationID).Error("enqueue failed")
			return c.String(http.StatusServiceUnavailable, "failed to enqueue command")
		}

		return c.JSON(http.StatusAccepted, mutationResponse{
			CorrelationID: cmd.CorrelationID,
			Status:        "queued",
			Message:       "command accepted for processing",
		})
	}
}

// enqueue retries submission with the same correlation id; the dedup claim
// makes the retries collapse to one logical command.
func (g *Gateway) enqueue(ctx context.Context, cmd domain.Command) error {
	var err error
	for attempt := 0; attempt < g.enqueueRetries; attempt++ {
		enqueueCtx := ctx
		var cancel context.CancelFunc
		if g.enqueueTimeout > 0 {
			enqueueCtx, cancel = context.WithTimeout(ctx, g.enqueueTimeout)
		}
		err = g.store.EnqueueCommand(enqueueCtx, cmd)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// enqueueStamp hands out strictly increasing nanosecond timestamps so two
// commands accepted in the same instant still carry a total order.
var lastStamp atomic.Int64

func enqueueStamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := lastStamp.Load()
		if now <= last {
			now = last + 1
		}
		if lastStamp.CompareAndSwap(last, now) {
			return now
		}
	}
}
