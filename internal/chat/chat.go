// Package chat is the knowledge base assistant: it relays a question about an
// article to the chat workflow webhook and keeps the transcript per article.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lumenflow/portal/internal/kv"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/webhook"
)

const (
	DefaultReply = "I'm not sure how to answer that. Could you rephrase your question?"
	ApologyReply = "Sorry, the assistant is not available right now. Please try again in a moment."
)

// replyKeys are probed in order; the first non-empty string wins.
var replyKeys = []string{"output", "text", "answer"}

// maxTranscript bounds the stored messages per article.
const maxTranscript = 100

var ErrEmptyMessage = errors.New("message is empty")

type request struct {
	Message        string `json:"message"`
	SessionID      string `json:"sessionId"`
	ArticleContent string `json:"article_content"`
	ArticleID      string `json:"article_id"`
}

type Chat struct {
	client *webhook.Client
	store  kv.Store
	now    func() time.Time
}

// New returns the chat of one client. store must be scoped to that client.
func New(client *webhook.Client, store kv.Store) *Chat {
	return &Chat{client: client, store: store, now: time.Now}
}

func sessionKey(articleID string) string  { return "chat:" + articleID + ":session" }
func messagesKey(articleID string) string { return "chat:" + articleID + ":messages" }

// History returns the stored transcript of the article, oldest first.
func (c *Chat) History(ctx context.Context, articleID string) ([]model.ChatMessage, error) {
	messages := []model.ChatMessage{}
	err := kv.GetJSON(ctx, c.store, messagesKey(articleID), &messages)
	if errors.Is(err, kv.ErrNotFound) {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Send asks the assistant and returns its reply. Delivery failures become an
// apology flagged as error; only an empty message is rejected.
func (c *Chat) Send(ctx context.Context, articleID, message, articleContent string) (model.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return model.ChatMessage{}, ErrEmptyMessage
	}

	sessionID := c.sessionID(ctx, articleID)
	history, err := c.History(ctx, articleID)
	if err != nil {
		slog.Warn("chat transcript unreadable, starting over", "error", err, "article_id", articleID)
		history = []model.ChatMessage{}
	}

	history = append(history, c.message(model.ChatRoleUser, message, false))

	reply := c.ask(ctx, request{
		Message:        message,
		SessionID:      sessionID,
		ArticleContent: articleContent,
		ArticleID:      articleID,
	})
	history = append(history, reply)

	if len(history) > maxTranscript {
		history = history[len(history)-maxTranscript:]
	}
	err = kv.SetJSON(ctx, c.store, messagesKey(articleID), history)
	if err != nil {
		slog.Warn("failed to save chat transcript", "error", err, "article_id", articleID)
	}

	return reply, nil
}

// ClearHistory forgets the transcript and the session of the article.
func (c *Chat) ClearHistory(ctx context.Context, articleID string) error {
	return c.store.RemovePrefix(ctx, "chat:"+articleID+":")
}

func (c *Chat) sessionID(ctx context.Context, articleID string) string {
	id, err := c.store.Get(ctx, sessionKey(articleID))
	if err == nil && id != "" {
		return id
	}

	id = uuid.New().String()
	err = c.store.Set(ctx, sessionKey(articleID), id)
	if err != nil {
		slog.Warn("failed to save chat session", "error", err, "article_id", articleID)
	}
	return id
}

func (c *Chat) ask(ctx context.Context, req request) model.ChatMessage {
	body, err := c.client.Post(ctx, req)
	if err != nil {
		slog.Warn("chat webhook failed", "error", err, "article_id", req.ArticleID)
		return c.message(model.ChatRoleAssistant, ApologyReply, true)
	}
	return c.message(model.ChatRoleAssistant, ExtractReply(body), false)
}

func (c *Chat) message(role, content string, failed bool) model.ChatMessage {
	return model.ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Error:     failed,
		CreatedAt: c.now().UTC(),
	}
}

// ExtractReply returns the first non-empty of output, text and answer from a
// JSON object (or the first object of a JSON array), else DefaultReply.
func ExtractReply(body []byte) string {
	var parsed any
	err := json.Unmarshal(body, &parsed)
	if err != nil {
		return DefaultReply
	}

	if list, ok := parsed.([]any); ok {
		if len(list) == 0 {
			return DefaultReply
		}
		parsed = list[0]
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return DefaultReply
	}
	for _, key := range replyKeys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return DefaultReply
}
