package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whenitworks/backend/internal/config"
	"github.com/whenitworks/backend/internal/upload"
)

func dialTestServer(t *testing.T, mutate func(*config.AppConfig)) *websocket.Conn {
	t.Helper()
	h, _ := newTestHandlers(t, mutate)
	e := echo.New()
	RegisterWebSocketRoutes(e, h)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	assert.NotEmpty(t, resp.Header.Get("Set-Cookie"), "socket opens a page session")
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

// readUntilState reads messages until a state in one of the given phases.
func readUntilState(t *testing.T, ws *websocket.Conn, phases ...upload.Phase) StateResponse {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readMessage(t, ws)
		if msg.Type != MsgTypeState {
			continue
		}
		var st StateResponse
		require.NoError(t, json.Unmarshal(msg.Payload, &st))
		for _, p := range phases {
			if st.Phase == p {
				return st
			}
		}
	}
	t.Fatalf("no state in phases %v", phases)
	return StateResponse{}
}

func selectMessage(id, name, content string) WSMessage {
	return WSMessage{
		Type: MsgTypeFileSelect,
		ID:   id,
		Payload: mustJSON(FileSelectPayload{
			Name: name,
			Data: base64.StdEncoding.EncodeToString([]byte(content)),
		}),
	}
}

func TestWebSocket_SelectAndClear(t *testing.T) {
	ws := dialTestServer(t, nil)

	assert.Equal(t, MsgTypeConnected, readMessage(t, ws).Type)
	initial := readUntilState(t, ws, upload.PhaseIdle)
	assert.Equal(t, upload.Placeholder, initial.Output)

	require.NoError(t, ws.WriteJSON(selectMessage("m1", "team.ics", sampleICS)))
	st := readUntilState(t, ws, upload.PhaseDisplayed, upload.PhaseFailed)
	assert.Equal(t, upload.PhaseDisplayed, st.Phase)
	assert.Equal(t, sampleICS, st.Output)
	assert.Equal(t, "team.ics", st.File.Name)

	require.NoError(t, ws.WriteJSON(selectMessage("m2", "notes.txt", "hello")))
	st = readUntilState(t, ws, upload.PhaseFailed)
	assert.Equal(t, "INVALID_TYPE", string(st.ErrorKind))
	assert.Equal(t, sampleICS, st.Output, "rejection keeps the displayed text")

	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypeFileClear, ID: "m3"}))
	st = readUntilState(t, ws, upload.PhaseIdle)
	assert.Equal(t, upload.Placeholder, st.Output)
}

func TestWebSocket_ProtocolErrors(t *testing.T) {
	ws := dialTestServer(t, nil)
	readMessage(t, ws) // connected
	readMessage(t, ws) // initial state

	tests := []struct {
		name     string
		msg      WSMessage
		wantType string
		wantCode string
	}{
		{"ping", WSMessage{Type: MsgTypePing, ID: "p"}, MsgTypePong, ""},
		{"unknown type", WSMessage{Type: "upload:init", ID: "u"}, MsgTypeError, "UNKNOWN_MESSAGE"},
		{"bad payload", WSMessage{Type: MsgTypeFileSelect, ID: "b", Payload: json.RawMessage(`"x"`)}, MsgTypeError, "INVALID_PAYLOAD"},
		{"missing name", selectMessage("n", "", "data"), MsgTypeError, "VALIDATION_ERROR"},
		{"bad base64", WSMessage{Type: MsgTypeFileSelect, ID: "d", Payload: mustJSON(FileSelectPayload{Name: "a.ics", Data: "!!"})}, MsgTypeError, "INVALID_DATA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, ws.WriteJSON(tt.msg))
			msg := readMessage(t, ws)
			assert.Equal(t, tt.wantType, msg.Type)
			assert.Equal(t, tt.msg.ID, msg.ID)
			if tt.wantCode != "" {
				var resp WSErrorResponse
				require.NoError(t, json.Unmarshal(msg.Payload, &resp))
				assert.Equal(t, tt.wantCode, resp.Code)
			}
		})
	}
}

func TestWebSocket_SelectionsAreRateLimited(t *testing.T) {
	ws := dialTestServer(t, func(cfg *config.AppConfig) {
		cfg.Advanced.WebSocketSelectsPerSec = 1
	})
	readMessage(t, ws) // connected
	readMessage(t, ws) // initial state

	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, ws.WriteJSON(selectMessage(id, "team.ics", sampleICS)))
	}

	var limited []string
	for i := 0; i < 20 && len(limited) < 2; i++ {
		msg := readMessage(t, ws)
		if msg.Type != MsgTypeError {
			continue
		}
		var resp WSErrorResponse
		require.NoError(t, json.Unmarshal(msg.Payload, &resp))
		assert.Equal(t, "RATE_LIMITED", resp.Code)
		limited = append(limited, msg.ID)
	}
	assert.Equal(t, []string{"s2", "s3"}, limited)
}

func TestWebSocket_OversizedFrameClosesConnection(t *testing.T) {
	ws := dialTestServer(t, func(cfg *config.AppConfig) {
		cfg.Advanced.WebSocketMaxMessageSize = 1 // KB
	})
	readMessage(t, ws) // connected
	readMessage(t, ws) // initial state

	require.NoError(t, ws.WriteJSON(selectMessage("big", "big.ics", strings.Repeat("A", 4096))))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var err error
	for err == nil {
		var msg WSMessage
		err = ws.ReadJSON(&msg)
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
}
