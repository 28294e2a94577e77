package collections

import (
	"net/http"
	"time"

	collectiondomain "todo-sync-go/internal/domain/collection"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 512
)

// StreamMessage is one frame pushed over /api/stream.
type StreamMessage struct {
	Type     string            `json:"type"`
	Snapshot *snapshotResponse `json:"snapshot,omitempty"`
}

const streamMessageSnapshot = "snapshot"

// Stream upgrades to a websocket and pushes the full snapshot of the path on
// connect and after every change. Clients send nothing but control frames.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	requested, stored, ok := h.resolvePath(w, r, "collections.stream")
	if !ok {
		return
	}

	// Only the newest snapshot matters, older ones are dropped unsent.
	pending := make(chan collectiondomain.Snapshot, 1)
	unsubscribe, err := h.Collections.Subscribe(r.Context(), stored, func(snapshot collectiondomain.Snapshot) {
		select {
		case <-pending:
		default:
		}
		pending <- snapshot
	}, nil)
	if err != nil {
		h.writeDomainError(w, "collections.stream", err, "path", stored)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.BusinessError("collections.stream: upgrade failed", err, "path", stored)
		return
	}
	defer conn.Close()

	log := h.log.With("path", stored, "remote", r.RemoteAddr)
	log.Debug("collections.stream: connected")

	readDone := make(chan struct{})
	go h.readControl(conn, readDone)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case snapshot := <-pending:
			message := StreamMessage{Type: streamMessageSnapshot, Snapshot: ptr(newSnapshotResponse(requested, snapshot))}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				log.BusinessError("collections.stream: write snapshot failed", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.BusinessError("collections.stream: ping failed", err)
				return
			}
		case <-readDone:
			log.Debug("collections.stream: client gone")
			return
		case <-h.Collections.Done():
			closeMessage := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait))
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readControl drains inbound frames so pong and close handlers run. It closes
// done when the connection fails or the client closes it.
func (h *Handlers) readControl(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	pongWait := 2 * h.pingInterval
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.BusinessError("collections.stream: read failed", err)
			}
			return
		}
	}
}

func ptr[T any](value T) *T {
	return &value
}
