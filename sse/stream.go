package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/caseflow/logger"
)

// EventConnected is the first frame on every stream.
const EventConnected = "connected"

// Serve streams the hub's events to w until the request ends or the hub
// stops. keepAlive sets the comment interval that holds proxies open.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, client *Client, keepAlive time.Duration) {
	log := hub.log.WithFields(logger.Fields("client_id", client.ID()))
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	// Streams outlive the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("write deadline not cleared", logger.Fields(logger.FieldError, err.Error()))
	}
	if !hub.Register(client) {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	hello, _ := json.Marshal(map[string]string{"client_id": client.ID(), "filter": client.Filter()})
	writeFrame(w, EventConnected, hello)
	flusher.Flush()
	log.Debug("stream opened", logger.Fields("remote_addr", r.RemoteAddr))

	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug("stream closed by client")
			return
		case f, ok := <-client.Frames():
			if !ok {
				return
			}
			writeFrame(w, f.Name, f.Data)
			flusher.Flush()
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, name string, data []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

// Handler serves GET /events. The optional run_id query parameter is a
// glob selecting which runs to follow.
func Handler(hub *Hub, keepAlive time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := NewClient(uuid.NewString(), c.Query("run_id"))
		Serve(hub, c.Writer, c.Request, client, keepAlive)
	}
}
