package handler

import (
	"ai-imagechat-be/internal/config"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/internal/repository/memory"
	internalWS "ai-imagechat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// WsHandler upgrades /ws/:sessionId requests, authenticates them and hands
// the connection to the registry.
type WsHandler struct {
	registry     *internalWS.Registry
	sessionRepo  contract.SessionRepository
	sessionCache *memory.SessionCache
	jwtSecret    string
	logger       logger.ILogger
}

func NewWsHandler(
	registry *internalWS.Registry,
	sessionRepo contract.SessionRepository,
	sessionCache *memory.SessionCache,
	cfg *config.Config,
	log logger.ILogger,
) *WsHandler {
	return &WsHandler{
		registry:     registry,
		sessionRepo:  sessionRepo,
		sessionCache: sessionCache,
		jwtSecret:    cfg.Jwt.Secret,
		logger:       log,
	}
}

func (h *WsHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/ws/:sessionId", h.ServeWs)
}

func (h *WsHandler) ServeWs(c *fiber.Ctx) error {
	// Token from query (browser standard) or Authorization header.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("WsHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	userIdStr, ok := claims["user_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID format in token"})
	}

	sessionId, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}

	// Ownership check, cache first to spare the store a round-trip.
	session, cached := h.sessionCache.Get(sessionId)
	if !cached {
		session, err = h.sessionRepo.FindById(c.UserContext(), sessionId)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Store unavailable"})
		}
		if session != nil {
			h.sessionCache.Save(session)
		}
	}
	if session == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	if session.UserId != userId {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your session"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.run(conn, userId, sessionId, tokenStr)
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// run owns the connection from admission to eviction. The read loop stays on
// this goroutine; heartbeats and broadcasts write from the registry's.
func (h *WsHandler) run(conn *websocket.Conn, userId, sessionId uuid.UUID, token string) {
	key, err := h.registry.Admit(conn, userId, sessionId, token)
	if err != nil {
		h.logger.Warn("WsHandler", "Admission rejected", map[string]interface{}{"error": err.Error()})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Missing authentication"))
		_ = conn.Close()
		return
	}

	h.logger.Info("WsHandler", "WebSocket session started", map[string]interface{}{
		"user_id":    userId,
		"session_id": sessionId,
	})

	for {
		_, data, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WsHandler", "Read error", map[string]interface{}{"error": readErr.Error()})
			}
			break
		}
		h.registry.HandleInbound(key, data)
	}

	h.registry.Evict(key)
	_ = conn.Close()
	h.logger.Info("WsHandler", "WebSocket session ended", map[string]interface{}{
		"user_id":    userId,
		"session_id": sessionId,
	})
}
