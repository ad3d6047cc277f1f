package verify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	verifymodel "github.com/wenqianl/facegate/backend/internal/model/verify"
	"github.com/wenqianl/facegate/backend/internal/service/extract"
	"github.com/wenqianl/facegate/backend/internal/service/hub"
	verifyservice "github.com/wenqianl/facegate/backend/internal/service/verify"
)

// WebSocketHandler carries verification actions over a per-connection
// channel: every inbound action gets exactly one ack or error reply, and
// the hub pushes server-initiated events on the same connection.
type WebSocketHandler struct {
	verifySvc *verifyservice.Service
	hub       *hub.Hub
	extractor extract.Extractor
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates the transport handler. extractor may be nil,
// in which case clients must submit precomputed embeddings.
func NewWebSocketHandler(verifySvc *verifyservice.Service, h *hub.Hub, extractor extract.Extractor) *WebSocketHandler {
	return &WebSocketHandler{
		verifySvc: verifySvc,
		hub:       h,
		extractor: extractor,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/verify/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// CreateMessage asks for a new session owned by this connection.
type CreateMessage struct {
	DurationMinutes int `json:"durationMinutes"`
}

// JoinMessage registers this connection as a participant of a session.
type JoinMessage struct {
	SessionID string `json:"sessionId"`
}

// ReferenceMessage uploads the owner's reference image. Embedding is
// optional; when absent the external extractor computes it.
type ReferenceMessage struct {
	Image     []byte    `json:"image"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// VerifyMessage uploads a participant image for comparison.
type VerifyMessage struct {
	Image       []byte    `json:"image"`
	Embedding   []float32 `json:"embedding,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	h.hub.Register(connID, conn)
	defer func() {
		// Lifecycle cleanup needs the binding, so it runs before the
		// connection is forgotten.
		h.verifySvc.HandleDisconnect(context.Background(), connID)
		h.hub.Unregister(connID)
	}()

	log.Printf("[websocket] new connection %s", connID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.hub.NotifyConnection(connID, "connected", map[string]any{"connectionId": connID})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error: %v", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			h.handleMessage(ctx, connID, &msg)
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, connID string, msg *inboundMessage) {
	switch msg.Type {
	case "create":
		h.handleCreate(ctx, connID, msg.Data)
	case "join":
		h.handleJoin(ctx, connID, msg.Data)
	case "reference":
		h.handleReference(ctx, connID, msg.Data)
	case "verify":
		h.handleVerify(ctx, connID, msg.Data)
	default:
		h.sendError(connID, msg.Type, "bad_request", "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleCreate(ctx context.Context, connID string, raw json.RawMessage) {
	var payload CreateMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(connID, "create", "bad_request", "invalid create payload")
		return
	}
	if _, _, bound := h.hub.Lookup(connID); bound {
		h.sendError(connID, "create", "bad_request", "connection is already in a session")
		return
	}

	session, err := h.verifySvc.CreateSession(ctx, connID, payload.DurationMinutes)
	if err != nil {
		h.sendServiceError(connID, "create", err)
		return
	}

	h.sendAck(connID, "create", map[string]any{
		"sessionId": session.ID,
		"role":      verifymodel.RoleOwner,
		"capacity":  session.Capacity,
		"expiresAt": session.ExpiresAt().Format(time.RFC3339),
	})
}

func (h *WebSocketHandler) handleJoin(ctx context.Context, connID string, raw json.RawMessage) {
	var payload JoinMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SessionID == "" {
		h.sendError(connID, "join", "bad_request", "sessionId is required")
		return
	}
	if _, _, bound := h.hub.Lookup(connID); bound {
		h.sendError(connID, "join", "bad_request", "connection is already in a session")
		return
	}

	if err := h.verifySvc.JoinSession(ctx, connID, payload.SessionID); err != nil {
		h.sendServiceError(connID, "join", err)
		return
	}

	h.sendAck(connID, "join", map[string]any{
		"sessionId": payload.SessionID,
		"role":      verifymodel.RoleParticipant,
	})
}

func (h *WebSocketHandler) handleReference(ctx context.Context, connID string, raw json.RawMessage) {
	var payload ReferenceMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(connID, "reference", "bad_request", "invalid reference payload")
		return
	}
	if len(payload.Image) == 0 {
		h.sendError(connID, "reference", "bad_request", "image is required")
		return
	}

	sessionID, _, ok := h.hub.Lookup(connID)
	if !ok {
		h.sendServiceError(connID, "reference", verifyservice.ErrNotAuthorized)
		return
	}

	embedding, err := h.resolveEmbedding(ctx, payload.Image, payload.Embedding)
	if err != nil {
		h.sendServiceError(connID, "reference", err)
		return
	}

	image := base64.StdEncoding.EncodeToString(payload.Image)
	if err := h.verifySvc.UploadReference(ctx, sessionID, connID, image, embedding); err != nil {
		h.sendServiceError(connID, "reference", err)
		return
	}

	h.sendAck(connID, "reference", map[string]any{"sessionId": sessionID})
}

func (h *WebSocketHandler) handleVerify(ctx context.Context, connID string, raw json.RawMessage) {
	var payload VerifyMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(connID, "verify", "bad_request", "invalid verify payload")
		return
	}
	if len(payload.Image) == 0 {
		h.sendError(connID, "verify", "bad_request", "image is required")
		return
	}

	sessionID, _, ok := h.hub.Lookup(connID)
	if !ok {
		h.sendServiceError(connID, "verify", verifyservice.ErrNotAuthorized)
		return
	}

	embedding, err := h.resolveEmbedding(ctx, payload.Image, payload.Embedding)
	if err != nil {
		h.sendServiceError(connID, "verify", err)
		return
	}

	image := base64.StdEncoding.EncodeToString(payload.Image)
	if _, err := h.verifySvc.UploadParticipant(ctx, sessionID, connID, image, embedding, payload.DisplayName); err != nil {
		h.sendServiceError(connID, "verify", err)
		return
	}

	// The verification outcome itself arrives as a verify_result push.
	h.sendAck(connID, "verify", map[string]any{"sessionId": sessionID})
}

// resolveEmbedding uses the client-supplied vector when present, otherwise
// delegates to the external extractor.
func (h *WebSocketHandler) resolveEmbedding(ctx context.Context, image []byte, embedding []float32) ([]float32, error) {
	if len(embedding) > 0 {
		return embedding, nil
	}
	if h.extractor == nil {
		return nil, errors.New("embedding is required: extraction is not configured")
	}
	return h.extractor.Extract(ctx, image)
}

func (h *WebSocketHandler) sendAck(connID, action string, data map[string]any) {
	payload := map[string]any{"action": action}
	for k, v := range data {
		payload[k] = v
	}
	h.hub.NotifyConnection(connID, "ack", payload)
}

func (h *WebSocketHandler) sendError(connID, action, code, message string) {
	h.hub.NotifyConnection(connID, "error", map[string]any{
		"action":  action,
		"code":    code,
		"message": message,
	})
}

func (h *WebSocketHandler) sendServiceError(connID, action string, err error) {
	h.sendError(connID, action, errorCode(err), err.Error())
}

// errorCode maps failures to stable wire codes. Everything here is
// caller-recoverable; unknown errors collapse to "internal".
func errorCode(err error) string {
	switch {
	case errors.Is(err, verifyservice.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, verifyservice.ErrSessionFull):
		return "session_full"
	case errors.Is(err, verifyservice.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, verifyservice.ErrReferenceNotReady):
		return "reference_not_ready"
	case errors.Is(err, verifyservice.ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, verifymodel.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, extract.ErrNoFaceDetected):
		return "no_face_detected"
	case errors.Is(err, extract.ErrAmbiguousFace):
		return "ambiguous_face"
	default:
		return "internal"
	}
}

// pingLoop keeps the connection alive under the 60s read deadline.
// WriteControl is safe alongside the hub's data writes.
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
