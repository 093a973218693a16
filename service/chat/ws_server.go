package chat

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"RPChat/global/config"
	"RPChat/logger"
	"RPChat/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server adapts websocket connections to the hub.
type Server struct {
	hub      *Hub
	conf     config.WSConfig
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, conf config.WSConfig) *Server {
	s := &Server{hub: hub, conf: conf.WithDefaults()}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  s.conf.ReadBufferSize,
		WriteBufferSize: s.conf.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.conf.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range s.conf.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// HandleWS upgrades the request and serves the connection until it closes.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// not a websocket request or handshake failed; upgrader already replied
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), s.hub.conf.SendQueueSize)
	session := s.hub.Connect(client)
	logger.Info("[ws] connected", zap.String("conn", client.ID), zap.String("remote", ws.RemoteAddr().String()))

	writerDone := make(chan struct{})
	go s.writePump(ws, client, writerDone)

	s.readLoop(c.Request.Context(), ws, session)

	session.Close()
	<-writerDone
	logger.Info("[ws] closed", zap.String("conn", client.ID))
}

// readLoop feeds frames to the session one at a time.
func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, session *SessionHandler) {
	ws.SetReadLimit(s.conf.MaxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
	})

	id := session.Client().ID
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", id)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", id, err)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", id, err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		session.HandleFrame(ctx, data)
	}
}

// writePump owns all writes to ws: queued frames and keepalive pings. It ends
// when the client's queue is closed or a write fails.
func (s *Server) writePump(ws *websocket.Conn, client *Client, done chan<- struct{}) {
	ticker := time.NewTicker(s.conf.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
		close(done)
	}()

	for {
		select {
		case payload, ok := <-client.Send():
			_ = ws.SetWriteDeadline(time.Now().Add(s.conf.WriteWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[ws] write err conn=%s err=%v", client.ID, err)
				client.Close()
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.conf.WriteWait)); err != nil {
				logger.Infof("[ws] ping err conn=%s err=%v", client.ID, err)
				client.Close()
				return
			}
		}
	}
}
