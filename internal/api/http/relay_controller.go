package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/safewatch/internal/auth"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/internal/service"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 4096
	defaultPingGap = 30 * time.Second
)

type RelayController struct {
	relay        service.RelayInteractor
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	log          *slog.Logger
}

func NewRelayController(relay service.RelayInteractor, pingInterval time.Duration, log *slog.Logger) *RelayController {
	if pingInterval <= 0 {
		pingInterval = defaultPingGap
	}
	if log == nil {
		log = slog.Default()
	}
	return &RelayController{
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		pingInterval: pingInterval,
		log:          log,
	}
}

// Serve upgrades an authenticated request to a relay socket. One goroutine
// owns writes; this one reads until the socket fails.
func (c *RelayController) Serve(ctx *gin.Context) {
	identity, ok := auth.IdentityFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrAuthRequired.Error()})
		return
	}

	ws, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Warn("failed to upgrade connection", sl.Err(err))
		return
	}

	conn := c.relay.Connect(identity)
	done := make(chan struct{})
	go c.writeLoop(ws, conn, done)

	c.readLoop(ctx.Request.Context(), ws, conn)

	c.relay.Disconnect(conn)
	<-done
	_ = ws.Close()
}

func (c *RelayController) readLoop(ctx context.Context, ws *websocket.Conn, conn *domain.Connection) {
	log := c.log.With(slog.String("conn_id", conn.ID))

	pongWait := c.pingInterval * 2
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		conn.Touch()
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("relay socket closed", sl.Err(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("malformed frame", sl.Err(err))
			conn.Enqueue(domain.ErrorMessage(service.ErrMalformedMessage.Error()))
			continue
		}

		if err := c.relay.Handle(ctx, conn, msg); err != nil {
			log.Info("frame rejected", slog.String("type", string(msg.Type)), sl.Err(err))
			conn.Enqueue(domain.ErrorMessage(frameError(err)))
		}
	}
}

func (c *RelayController) writeLoop(ws *websocket.Conn, conn *domain.Connection, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-conn.Events:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteJSON(msg); err != nil {
				// unblocks the reader
				_ = ws.Close()
				drain(conn)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = ws.Close()
				drain(conn)
				return
			}
		}
	}
}

func drain(conn *domain.Connection) {
	for range conn.Events {
	}
}

func frameError(err error) string {
	for _, known := range []error{
		service.ErrInvalidCode,
		service.ErrForbidden,
		service.ErrMalformedMessage,
		service.ErrUnsupportedMessage,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
