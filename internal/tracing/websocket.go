package tracing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prasenjit/go-gateway/internal/models"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	maxReplay    = 100
)

// WebSocketHandler streams recorded calls to websocket clients. The query
// string narrows the stream the same way it narrows a call listing:
// specId, endpointId, method, statusCode and success. replay=N first sends
// up to N already recorded matching calls, oldest first.
type WebSocketHandler struct {
	service  *Service
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(service *Service, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // the admin surface is not browser-facing
			},
		},
	}
}

// streamFilter reads the stream filter and replay count from the query.
func streamFilter(q url.Values) (*models.CallLogFilter, int, error) {
	filter := &models.CallLogFilter{
		SpecID:     q.Get("specId"),
		EndpointID: q.Get("endpointId"),
		Method:     strings.ToUpper(q.Get("method")),
	}

	if v := q.Get("statusCode"); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid statusCode %q", v)
		}
		filter.StatusCode = code
	}
	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid success %q", v)
		}
		filter.Success = &success
	}

	replay := 0
	if v := q.Get("replay"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, 0, fmt.Errorf("invalid replay %q", v)
		}
		replay = min(n, maxReplay)
	}
	return filter, replay, nil
}

// ServeHTTP upgrades the connection and streams matching calls until the
// client goes away.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, replay, err := streamFilter(r.URL.Query())
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "kind": "InvalidRequest"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Subscribe before replaying so nothing recorded in between is lost.
	subID, calls := h.service.Subscribe()
	defer h.service.Unsubscribe(subID)

	log := h.logger.With("subscriber", subID, "spec", filter.SpecID)

	sent := make(map[string]bool)
	send := func(entry *models.CallLog) bool {
		if !matches(filter, entry) {
			return true
		}
		data, err := json.Marshal(entry)
		if err != nil {
			log.Warn("failed to marshal call log", "id", entry.ID, "error", err)
			return true
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("websocket client went away", "error", err)
			return false
		}
		return true
	}

	if replay > 0 {
		backlog := h.service.GetCalls(&models.CallLogFilter{
			SpecID:     filter.SpecID,
			EndpointID: filter.EndpointID,
			Method:     filter.Method,
			StatusCode: filter.StatusCode,
			Success:    filter.Success,
			Limit:      replay,
		})
		for i := len(backlog) - 1; i >= 0; i-- {
			if !send(backlog[i]) {
				return
			}
			sent[backlog[i].ID] = true
		}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Read messages only to notice the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-calls:
			if !ok {
				return
			}
			// Calls recorded while replaying arrive here a second time.
			if sent[entry.ID] {
				delete(sent, entry.ID)
				continue
			}
			if !send(entry) {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
