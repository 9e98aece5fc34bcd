package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/broadcast"
)

const (
	tabWriteWait  = 10 * time.Second
	tabPongWait   = 60 * time.Second
	tabPingPeriod = tabPongWait * 9 / 10
	tabSendBuffer = 32
	tabMaxFrame   = 1 << 20
)

// TabFrame is one keyed value exchanged with a tab
type TabFrame struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

var tabKeys = map[string]bool{
	broadcast.KeyContactInquiries: true,
	broadcast.KeyMotorInquiries:   true,
	broadcast.KeyB2BRegistrations: true,
	broadcast.KeyPopupConfig:      true,
}

// HandleTabSocket handles GET /v1/tabs/ws?tab=<id>&keys=a,b. The tab first
// receives the current value of every subscribed key, then every change
// published by someone else. Frames sent by the tab are published with
// the tab as origin.
func HandleTabSocket(channel *broadcast.Channel, allowedOrigins []string, logger *zap.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(c *gin.Context) {
		tabID := c.Query("tab")
		if tabID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tab is required"})
			return
		}
		var keys []string
		for _, k := range strings.Split(c.Query("keys"), ",") {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			if !tabKeys[k] {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown key " + k})
				return
			}
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keys is required"})
			return
		}

		t := &tabConn{
			id:      tabID,
			send:    make(chan TabFrame, tabSendBuffer),
			quit:    make(chan struct{}),
			channel: channel,
			logger:  logger,
		}

		// subscriptions must exist before the client sees the upgrade
		unsubscribe := make([]func(), 0, len(keys))
		for _, key := range keys {
			unsubscribe = append(unsubscribe, channel.Subscribe(key, tabID, t.enqueue))
		}
		defer func() {
			for _, u := range unsubscribe {
				u()
			}
		}()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Debug("Tab upgrade failed", zap.Error(err))
			return
		}
		t.conn = conn
		t.serve(c.Request.Context(), keys)
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

type tabConn struct {
	id      string
	conn    *websocket.Conn
	send    chan TabFrame
	quit    chan struct{}
	channel *broadcast.Channel
	logger  *zap.Logger
}

// serve sends the current values of keys, then pumps frames both ways
// until the connection closes
func (t *tabConn) serve(ctx context.Context, keys []string) {
	defer t.conn.Close()

	for _, key := range keys {
		if v, ok := t.channel.Get(key); ok {
			t.enqueue(broadcast.Message{Key: key, Value: v})
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.writeLoop()
	}()

	t.readLoop(ctx)
	close(t.quit)
	<-done
}

// enqueue hands a message to the writer. A tab that does not keep up
// loses the message; the next write of the key carries the full value.
func (t *tabConn) enqueue(msg broadcast.Message) {
	select {
	case t.send <- TabFrame{Key: msg.Key, Value: msg.Value}:
	default:
		t.logger.Warn("Dropping broadcast for slow tab", zap.String("tab", t.id), zap.String("key", msg.Key))
	}
}

func (t *tabConn) readLoop(ctx context.Context) {
	t.conn.SetReadLimit(tabMaxFrame)
	t.conn.SetReadDeadline(time.Now().Add(tabPongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(tabPongWait))
	})

	for {
		var frame TabFrame
		if err := t.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Debug("Tab connection closed", zap.String("tab", t.id), zap.Error(err))
			}
			return
		}
		if !tabKeys[frame.Key] || len(frame.Value) == 0 || !json.Valid(frame.Value) {
			t.logger.Warn("Ignoring invalid tab frame", zap.String("tab", t.id), zap.String("key", frame.Key))
			continue
		}
		if err := t.channel.Publish(ctx, t.id, frame.Key, frame.Value); err != nil {
			t.logger.Warn("Failed to publish tab frame", zap.String("tab", t.id), zap.Error(err))
		}
	}
}

func (t *tabConn) writeLoop() {
	ticker := time.NewTicker(tabPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(tabWriteWait))
			if err := t.conn.WriteJSON(frame); err != nil {
				// unblocks the reader
				t.conn.Close()
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(tabWriteWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.conn.Close()
				return
			}
		case <-t.quit:
			t.conn.SetWriteDeadline(time.Now().Add(tabWriteWait))
			t.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
