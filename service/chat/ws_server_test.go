package chat

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"RPChat/global/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, conf config.WSConfig) (*httptest.Server, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h, _ := newTestHub(t, WithRoller(fixedRoller{v: 3}))
	r := gin.New()
	r.GET("/ws", NewServer(h, conf).HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var m map[string]any
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func writeText(t *testing.T, ws *websocket.Conn, s string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(s)))
}

func TestWebsocketEndToEnd(t *testing.T) {
	srv, h := newWSServer(t, config.WSConfig{})

	a := dial(t, srv)
	writeText(t, a, authFrame(1, 7))
	assert.Equal(t, TypeAuthenticated, readJSON(t, a)["type"])
	writeText(t, a, roomFrame(TypeJoinRoom, 5))
	assert.Equal(t, []int64{7}, idList(readJSON(t, a)["characters"]))

	b := dial(t, srv)
	writeText(t, b, authFrame(2, 8))
	readJSON(t, b)
	writeText(t, b, roomFrame(TypeJoinRoom, 5))
	assert.Equal(t, []int64{7, 8}, idList(readJSON(t, b)["characters"]))
	assert.Equal(t, TypePresenceUpdate, readJSON(t, a)["type"])

	writeText(t, b, roomFrame(TypeDiceRoll, 5))
	for _, ws := range []*websocket.Conn{a, b} {
		msg := readJSON(t, ws)["message"].(map[string]any)
		assert.Equal(t, "hodil kostkou: 4", msg["content"])
	}

	require.NoError(t, b.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	upd := readJSON(t, a)
	assert.Equal(t, TypePresenceUpdate, upd["type"])
	assert.Equal(t, []int64{7}, idList(upd["characters"]))

	assert.Eventually(t, func() bool { return h.Registry().Len() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWebsocketRejectsOrigin(t *testing.T) {
	srv, _ := newWSServer(t, config.WSConfig{AllowedOrigins: []string{"https://rp.example"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, map[string][]string{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial(url, map[string][]string{"Origin": {"https://rp.example"}})
	require.NoError(t, err)
	_ = ws.Close()
}
