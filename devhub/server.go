package devhub

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"

	"github.com/orderbell-io/orderbell-go/tool"
	"github.com/orderbell-io/orderbell-go/types"
)

const (
	defaultQRSize = 200
	maxQRSize     = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dev server, localhost use only
	},
}

// Server wraps the hub in a gin engine: the /ws push channel plus a small
// dev API for emitting events from curl or a test.
type Server struct {
	hub   *Hub
	token string
}

// NewServer creates a dev server. When token is non-empty, the /ws handshake
// requires "Authorization: Bearer <token>" and rejects anything else with
// 401, which clients must treat as terminal.
func NewServer(token string) *Server {
	return &Server{hub: New(), token: token}
}

// Hub exposes the underlying hub, mainly for tests.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the gin handler.
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/ws", s.handleWS)
	engine.GET("/qr", s.handleQR)

	dev := engine.Group("/api/dev")
	dev.POST("/notify", s.handleNotify)
	dev.POST("/redeliver", s.handleRedeliver)
	return engine
}

// Run serves on the given port until the listener fails.
func (s *Server) Run(port int) error {
	tool.DefaultLogger.Infof("[Devhub] Listening on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.Handler())
}

func (s *Server) handleWS(c *gin.Context) {
	if s.token != "" && c.GetHeader("Authorization") != "Bearer "+s.token {
		c.String(http.StatusUnauthorized, "bad credential")
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	cl := s.hub.Register(conn)
	defer s.hub.Unregister(conn)
	s.hub.ServeFrames(cl)
}

type notifyRequest struct {
	Room  string                  `json:"room"`
	Event types.NotificationEvent `json:"event"`
}

func (s *Server) handleNotify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Event.ID == "" {
		req.Event.ID = uuid.NewString()
	}
	if req.Event.Kind == "" {
		req.Event.Kind = types.EventKindGeneric
	}
	if req.Event.CreatedAt.IsZero() {
		req.Event.CreatedAt = time.Now().UTC()
	}
	sent := s.hub.Broadcast(req.Room, req.Event)
	c.JSON(http.StatusOK, gin.H{"id": req.Event.ID, "delivered": sent})
}

func (s *Server) handleRedeliver(c *gin.Context) {
	sent, ok := s.hub.Redeliver()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing broadcast yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": sent})
}

// handleQR returns a PNG QR code, by default encoding the ws URL of this
// server so a second device can be pointed at it quickly.
// GET /qr?size=200&data=<url-encoded-content>
func (s *Server) handleQR(c *gin.Context) {
	data := c.Query("data")
	if data == "" {
		data = "ws://" + c.Request.Host + "/ws"
	}
	size := parseSize(c.Query("size"))
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	png, err := qrcode.Encode(data, qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode QR code: " + err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// parseSize parses size from "200x200" or "200" and returns the pixel dimension.
func parseSize(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if idx := strings.Index(s, "x"); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
