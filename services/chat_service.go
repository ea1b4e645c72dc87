package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"etf-invest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// chatWebhookTimeout bounds the outbound workflow call.
const chatWebhookTimeout = 15 * time.Second

const chatFallbackReply = "Sorry, I'm having trouble responding right now. Please try again in a moment."

type ChatService struct {
	DB         *gorm.DB
	WebhookURL string
	HTTPClient *http.Client
}

func NewChatService(db *gorm.DB, webhookURL string) *ChatService {
	return &ChatService{
		DB:         db,
		WebhookURL: webhookURL,
		HTTPClient: &http.Client{Timeout: chatWebhookTimeout},
	}
}

// PostMessage proxies one user message to the external workflow webhook and
// returns its reply. Any failure — timeout, non-2xx, bad payload — degrades
// to the canned apology instead of an error; the widget must never break the
// page.
func (s *ChatService) PostMessage(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
		History   []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"history"`
		Path string `json:"path"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message is required"})
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	if err := s.DB.Create(&models.ChatMessage{
		SessionID: req.SessionID,
		UserID:    userID,
		Role:      models.ChatRoleUser,
		Content:   req.Message,
	}).Error; err != nil {
		log.Printf("DB Error storing chat message: %v", err)
	}

	reply := s.forwardToWebhook(c.Context(), userID, req.SessionID, req.Message, req.History, req.Path, c.Get("Origin"))

	if err := s.DB.Create(&models.ChatMessage{
		SessionID: req.SessionID,
		UserID:    userID,
		Role:      models.ChatRoleAssistant,
		Content:   reply,
	}).Error; err != nil {
		log.Printf("DB Error storing chat reply: %v", err)
	}

	return c.JSON(fiber.Map{"session_id": req.SessionID, "reply": reply})
}

// GetHistory returns the transcript of one chat session.
func (s *ChatService) GetHistory(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	sessionID := c.Params("session_id")

	var messages []models.ChatMessage
	if err := s.DB.Where("session_id = ? AND user_id = ?", sessionID, userID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		log.Printf("DB Error fetching chat history: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch chat history"})
	}
	return c.JSON(messages)
}

func (s *ChatService) forwardToWebhook(ctx context.Context, userID, sessionID, message string, history interface{}, path, origin string) string {
	if s.WebhookURL == "" {
		return chatFallbackReply
	}

	payload := map[string]interface{}{
		"source":    "invest-platform",
		"event":     "chat_message",
		"userId":    userID,
		"sessionId": sessionID,
		"message":   message,
		"history":   history,
		"path":      path,
		"origin":    origin,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return chatFallbackReply
	}

	ctx, cancel := context.WithTimeout(ctx, chatWebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return chatFallbackReply
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		log.Printf("⚠️ [CHAT] Webhook call failed: %v", err)
		return chatFallbackReply
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("⚠️ [CHAT] Webhook returned status %d", resp.StatusCode)
		return chatFallbackReply
	}

	return parseChatReply(raw)
}

// parseChatReply accepts {message}/{reply}/{text} JSON bodies, falling back
// to the raw body as plain text.
func parseChatReply(raw []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Reply   string `json:"reply"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		switch {
		case parsed.Message != "":
			return parsed.Message
		case parsed.Reply != "":
			return parsed.Reply
		case parsed.Text != "":
			return parsed.Text
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return chatFallbackReply
}
