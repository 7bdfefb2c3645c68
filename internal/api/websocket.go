package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/whenitworks/backend/internal/intake"
	"github.com/whenitworks/backend/internal/session"
	"github.com/whenitworks/backend/internal/upload"
	"golang.org/x/time/rate"
)

// WebSocket message types for the intake protocol
const (
	// Client -> Server messages
	MsgTypeFileSelect = "file:select"
	MsgTypeFileClear  = "file:clear"
	MsgTypePing       = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeState     = "state"
	MsgTypeAck       = "ack"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// FileSelectPayload carries one selected file
type FileSelectPayload struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64 encoded file
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler runs the live intake channel. Selections made over the
// socket are read in the background and every transition is pushed back as
// a state message.
type WebSocketHandler struct {
	sessions         *session.Manager
	cookieName       string
	upgrader         websocket.Upgrader
	maxMessageSize   int64
	selectsPerSecond int
}

// NewWebSocketHandler creates a new WebSocket intake handler
func NewWebSocketHandler(sessions *session.Manager, cookieName string, maxMessageSize int64, selectsPerSecond int) *WebSocketHandler {
	if selectsPerSecond <= 0 {
		selectsPerSecond = 4
	}
	return &WebSocketHandler{
		sessions:   sessions,
		cookieName: cookieName,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		maxMessageSize:   maxMessageSize,
		selectsPerSecond: selectsPerSecond,
	}
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msg WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Debugf("[WebSocket] Failed to send %s: %v", msg.Type, err)
	}
}

func (c *wsConn) sendError(id, message, code string) {
	c.send(WSMessage{
		Type:    MsgTypeError,
		ID:      id,
		Payload: mustJSON(WSErrorResponse{Message: message, Code: code}),
	})
}

func (c *wsConn) sendState(st upload.State) {
	c.send(WSMessage{
		Type:    MsgTypeState,
		ID:      st.AttemptID,
		Payload: mustJSON(newStateResponse(st)),
	})
}

// HandleWebSocket upgrades the connection and serves the intake protocol
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	sess := session.Resolve(c, wsh.sessions, wsh.cookieName)

	respHeader := http.Header{}
	if cookies := c.Response().Header().Values("Set-Cookie"); len(cookies) > 0 {
		respHeader["Set-Cookie"] = cookies
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), respHeader)
	if err != nil {
		return err
	}
	defer ws.Close()
	if wsh.maxMessageSize > 0 {
		ws.SetReadLimit(wsh.maxMessageSize)
	}

	conn := &wsConn{ws: ws}
	log.Infof("[WebSocket] Client connected (session %s)", shortID(sess.ID))

	// Reads started over this socket stop when it closes.
	ctx, cancelReads := context.WithCancel(context.Background())
	defer cancelReads()

	updates, unsubscribe := sess.Upload.Subscribe()
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for st := range updates {
			conn.sendState(st)
		}
	}()
	defer func() {
		unsubscribe()
		<-forwarded
	}()

	conn.send(WSMessage{Type: MsgTypeConnected, ID: sess.ID})
	conn.sendState(sess.Upload.State())

	limiter := rate.NewLimiter(rate.Limit(wsh.selectsPerSecond), wsh.selectsPerSecond)

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("[WebSocket] Connection error: %v", err)
			}
			break
		}
		wsh.sessions.Touch(sess.ID)

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID})
		case MsgTypeFileSelect:
			if !limiter.Allow() {
				conn.sendError(msg.ID, "Too many selections, slow down", "RATE_LIMITED")
				continue
			}
			wsh.handleFileSelect(ctx, conn, sess, msg)
		case MsgTypeFileClear:
			sess.Upload.Clear()
			conn.send(WSMessage{Type: MsgTypeAck, ID: msg.ID})
		default:
			conn.sendError(msg.ID, "Unknown message type: "+msg.Type, "UNKNOWN_MESSAGE")
		}
	}

	log.Infof("[WebSocket] Client disconnected (session %s)", shortID(sess.ID))
	return nil
}

// handleFileSelect starts a selection and acknowledges it with the attempt
// id. The outcome arrives later as state messages.
func (wsh *WebSocketHandler) handleFileSelect(ctx context.Context, conn *wsConn, sess *session.Session, msg WSMessage) {
	var payload FileSelectPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		conn.sendError(msg.ID, "Invalid select payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}
	if payload.Name == "" {
		conn.sendError(msg.ID, "validation failed for field: name", "VALIDATION_ERROR")
		return
	}

	data, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		conn.sendError(msg.ID, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}

	st := sess.Upload.Select(ctx, intake.FromBytes(payload.Name, data))
	conn.send(WSMessage{
		Type: MsgTypeAck,
		ID:   msg.ID,
		Payload: mustJSON(map[string]string{
			"attemptId": st.AttemptID,
			"phase":     string(st.Phase),
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
