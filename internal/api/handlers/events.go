package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/realtime"
	"go.uber.org/zap"
)

const keepAlive = 25 * time.Second

type Subscriber interface {
	Subscribe() (<-chan realtime.Change, func())
}

// EventsHandler streams document changes for the caller's company as
// server-sent events carrying structured CloudEvents.
type EventsHandler struct {
	broker Subscriber
	logger *zap.Logger
}

func NewEventsHandler(broker Subscriber, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		broker: broker,
		logger: logger.With(zap.String("handler", "events")),
	}
}

func (h *EventsHandler) Stream(c *gin.Context) {
	company := companyID(c)
	changes, cancel := h.broker.Subscribe()
	defer cancel()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", company)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case change, ok := <-changes:
			if !ok {
				return false
			}
			if change.CompanyID != company {
				return true
			}
			event, err := realtime.ToEvent(change)
			if err != nil {
				h.logger.Warn("Failed to build event", zap.Error(err))
				return true
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("Failed to encode event", zap.Error(err))
				return true
			}
			c.SSEvent(string(change.Type), string(data))
			return true
		}
	})
}
