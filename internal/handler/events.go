package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"labbroker/internal/notify"
	apperrors "labbroker/pkg/errors"
	httputil "labbroker/pkg/http"
	"labbroker/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const defaultKeepAlive = 25 * time.Second

// Subscriber hands out event subscriptions for one recipient.
type Subscriber interface {
	Subscribe(recipient string) *notify.Subscription
}

// EventsHandler streams notifications to a connected client as
// server-sent events.
type EventsHandler struct {
	subscriber Subscriber
	keepAlive  time.Duration
	log        *logger.Logger
}

func NewEventsHandler(subscriber Subscriber, log *logger.Logger) *EventsHandler {
	return &EventsHandler{
		subscriber: subscriber,
		keepAlive:  defaultKeepAlive,
		log:        log,
	}
}

func (h *EventsHandler) RegisterStreamRoutes(router *httprouter.Router) {
	router.GET(apiPrefix+"/events", h.Stream)
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requester, err := httputil.Requester(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Stream", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		if writeErr := httputil.WriteError(w, apperrors.Internal("Streaming unsupported", nil)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Stream", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	// The server write timeout would otherwise end the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub := h.subscriber.Subscribe(requester.Username)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-sub.C:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.log.Error("failed to encode event", "type", event.Type, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
				h.log.Debug("event stream closed", "recipient", requester.Username, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
