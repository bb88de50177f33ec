package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/middleware"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/services"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// ChatHandler handles HTTP requests related to chat sessions and messages
type ChatHandler struct {
	chat     *services.ChatService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chat *services.ChatService, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "chat_handler"),
	}
}

// RegisterChatRoutes registers chat-related routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/chats/resolve", h.ResolveChat)
	g.POST("/chats/:id/messages", h.SendMessage)
	g.GET("/chats/:id/messages", h.ListMessages)
	g.GET("/chats/:id/messages/ws", h.StreamMessages)
	g.POST("/chats/:id/read", h.MarkRead)
}

// ResolveChat opens the chat between the caller and the other account of the pair
func (h *ChatHandler) ResolveChat(c echo.Context) error {
	callerID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	var req models.ResolveChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var counterpart string
	switch callerID {
	case req.AccountA:
		counterpart = req.AccountB
	case req.AccountB:
		counterpart = req.AccountA
	default:
		return httpError(apperrors.Forbidden("caller must be one of the accounts"))
	}

	opened, err := h.chat.OpenChat(c.Request().Context(), callerID, counterpart)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id":   opened.Session.ID,
		"session":      opened.Session,
		"participants": opened.Participants,
	})
}

// SendMessage appends a message to the chat as the caller
func (h *ChatHandler) SendMessage(c echo.Context) error {
	callerID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	id, err := h.chat.SendMessage(c.Request().Context(), callerID, c.Param("id"), req.Text, req.Type)
	if err != nil {
		return httpError(err)
	}
	if id == "" {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// ListMessages returns the chat's full ordered message list
func (h *ChatHandler) ListMessages(c echo.Context) error {
	callerID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	msgs, err := h.chat.Messages(c.Request().Context(), callerID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// MarkRead marks the messages the caller received in this chat as read
func (h *ChatHandler) MarkRead(c echo.Context) error {
	callerID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	n, err := h.chat.MarkRead(c.Request().Context(), callerID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}

// StreamMessages upgrades to a WebSocket and pushes the full message list
// every time the chat changes. Access is checked before the upgrade so
// failures still get a proper HTTP status.
func (h *ChatHandler) StreamMessages(c echo.Context) error {
	callerID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	chatID := c.Param("id")

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	var (
		writeMu sync.Mutex
		ws      *websocket.Conn
		ready   = make(chan struct{})
	)
	send := func(msgs []models.Message) {
		<-ready
		if ws == nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := ws.WriteJSON(echo.Map{"messages": msgs}); err != nil {
			h.logger.Debug("websocket write failed", "chat_id", chatID, "error", err)
			cancel()
		}
	}

	unsubscribe, err := h.chat.Subscribe(ctx, callerID, chatID, send)
	if err != nil {
		return httpError(err)
	}
	defer unsubscribe()

	ws, err = h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("failed to upgrade the websocket", "chat_id", chatID, "error", err)
		ws = nil
		cancel()
		close(ready)
		return nil
	}
	defer ws.Close()
	close(ready)
	h.logger.Info("chat stream opened", "chat_id", chatID, "account_id", callerID)

	go h.keepAlive(ctx, ws, &writeMu, cancel)

	// Reads only serve to notice the client going away.
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := ws.NextReader(); err != nil {
			break
		}
	}

	h.logger.Info("chat stream closed", "chat_id", chatID, "account_id", callerID)
	return nil
}

func (h *ChatHandler) keepAlive(ctx context.Context, ws *websocket.Conn, writeMu *sync.Mutex, cancel context.CancelFunc) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			writeMu.Lock()
			_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			writeMu.Unlock()
			return
		case <-ticker.C:
			writeMu.Lock()
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			writeMu.Unlock()
			if err != nil {
				cancel()
				return
			}
		}
	}
}
