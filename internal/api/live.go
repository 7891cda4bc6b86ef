package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/soaringjerry/FormPulse/internal/services"
)

const (
	liveSendBuffer = 16
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// LiveHub fans response events out to the websocket subscribers of each
// form. Publish never blocks: a subscriber whose buffer is full misses the
// event.
type LiveHub struct {
	mu       sync.RWMutex
	forms    map[string]map[*liveClient]struct{}
	log      *zap.Logger
	upgrader websocket.Upgrader
}

var _ services.Notifier = (*LiveHub)(nil)

// NewLiveHub accepts upgrades from origins, or from any origin when origins
// is empty.
func NewLiveHub(log *zap.Logger, origins []string) *LiveHub {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := map[string]bool{}
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[o] = true
		}
	}
	h := &LiveHub{forms: map[string]map[*liveClient]struct{}{}, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || allowed[origin]
		},
	}
	return h
}

// Subscribers returns the number of open connections for formID.
func (h *LiveHub) Subscribers(formID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.forms[formID])
}

func (h *LiveHub) add(formID string, c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.forms[formID] == nil {
		h.forms[formID] = map[*liveClient]struct{}{}
	}
	h.forms[formID][c] = struct{}{}
	h.log.Debug("live subscriber connected", zap.String("form_id", formID), zap.Int("total", len(h.forms[formID])))
}

func (h *LiveHub) remove(formID string, c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.forms[formID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.forms, formID)
	}
	h.log.Debug("live subscriber disconnected", zap.String("form_id", formID))
}

// Publish implements services.Notifier.
func (h *LiveHub) Publish(ev services.LiveEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("live event marshal failed", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.forms[ev.Data.FormID] {
		select {
		case c.send <- data:
		default:
			h.log.Warn("live subscriber too slow, event dropped",
				zap.String("form_id", ev.Data.FormID), zap.String("type", ev.Type))
		}
	}
}

// Serve upgrades the request and streams formID's events until the client
// goes away.
func (h *LiveHub) Serve(w http.ResponseWriter, r *http.Request, formID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &liveClient{conn: conn, send: make(chan []byte, liveSendBuffer)}
	h.add(formID, c)
	go h.writePump(c)

	defer func() {
		h.remove(formID, c)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		// clients only ever send control frames
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHub) writePump(c *liveClient) {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
