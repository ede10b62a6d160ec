package websocket

import (
	"context"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/service/voice"
)

// Server is the part of the orchestrator the websocket layer drives.
type Server interface {
	Serve(ctx context.Context, conn voice.Conn, clientID string, branchID int64) error
}

type VoiceStreamHandler struct {
	server Server
	log    *zap.Logger
}

func NewVoiceStreamHandler(server Server, log *zap.Logger) *VoiceStreamHandler {
	return &VoiceStreamHandler{
		server: server,
		log:    log,
	}
}

// HandleVoiceStream gerencia o streaming bidirecional de voz
func (h *VoiceStreamHandler) HandleVoiceStream(c *websocket.Conn) {
	clientID := c.Query("client_id")
	branchID, err := strconv.ParseInt(c.Query("branch_id", "0"), 10, 64)
	if err != nil || branchID < 0 {
		h.log.Warn("Invalid branch_id, grounding disabled for session", zap.String("branch_id", c.Query("branch_id")))
		branchID = 0
	}

	if err := h.server.Serve(context.Background(), closeAware{c}, clientID, branchID); err != nil {
		h.log.Warn("Voice stream closed with error", zap.String("client_id", clientID), zap.Error(err))
	}
}

// closeAware reports a client close as io.EOF so the session ends cleanly.
type closeAware struct {
	conn *websocket.Conn
}

func (c closeAware) ReadMessage() (int, []byte, error) {
	mt, data, err := c.conn.ReadMessage()
	if err != nil && isClientClose(err) {
		return mt, data, io.EOF
	}
	return mt, data, err
}

func (c closeAware) WriteMessage(messageType int, data []byte) error {
	return c.conn.WriteMessage(messageType, data)
}

func isClientClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

// SetupVoiceRoutes configura rotas de WebSocket para voz
func SetupVoiceRoutes(app *fiber.App, handler *VoiceStreamHandler) {
	app.Use("/ws/voice", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/voice", websocket.New(handler.HandleVoiceStream))
}
