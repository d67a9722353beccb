package handler

import (
	"errors"
	"net/http"

	"github.com/lumenflow/portal/internal/chat"
	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/kv"
	"github.com/lumenflow/portal/internal/live"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/ui"
	"github.com/lumenflow/portal/internal/webhook"
)

type KnowledgeHandler struct {
	knowledgeService *service.KnowledgeService
	chatClient       *webhook.Client
	store            kv.Store
	needsConsent     bool
	feed             live.Subscriber
}

func NewKnowledgeHandler(knowledgeService *service.KnowledgeService, chatClient *webhook.Client, store kv.Store, needsConsent bool, feed live.Subscriber) *KnowledgeHandler {
	return &KnowledgeHandler{
		knowledgeService: knowledgeService,
		chatClient:       chatClient,
		store:            store,
		needsConsent:     needsConsent,
		feed:             feed,
	}
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	articles, err := h.knowledgeService.List(r.Context(), viewer(r))
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, map[string]any{"articles": articles})
}

func (h *KnowledgeHandler) Events(w http.ResponseWriter, r *http.Request) {
	serveLive(w, r, h.feed, "knowledge", h.knowledgeService.ListWatch)
}

func (h *KnowledgeHandler) Article(w http.ResponseWriter, r *http.Request) {
	article, err := h.knowledgeService.BySlug(r.Context(), viewer(r), r.PathValue("slug"))
	if err != nil {
		loadError(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, article)
}

func (h *KnowledgeHandler) chatFor(r *http.Request) *chat.Chat {
	return chat.New(h.chatClient, kv.ForClient(h.store, ctxkeys.ClientID(r.Context())))
}

// ChatHistory returns the stored transcript and whether chatting is allowed.
func (h *KnowledgeHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	article, err := h.knowledgeService.BySlug(r.Context(), viewer(r), r.PathValue("slug"))
	if err != nil {
		loadError(w, r, err)
		return
	}

	messages, err := h.chatFor(r).History(r.Context(), article.ID)
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	consented, err := h.consented(r)
	if err != nil {
		loadFailed(w, r, err)
		return
	}

	ui.JSON(w, http.StatusOK, map[string]any{
		"messages":         messages,
		"consent_required": !consented,
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

// ChatSend asks the assistant about the article. Assistant failures come
// back as a flagged apology message, never as an error response.
func (h *KnowledgeHandler) ChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "")
		return
	}

	consented, err := h.consented(r)
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	if !consented {
		ui.Error(w, http.StatusForbidden, "consent_required", message(r, "chat.consent_required"))
		return
	}

	article, err := h.knowledgeService.BySlug(r.Context(), viewer(r), r.PathValue("slug"))
	if err != nil {
		loadError(w, r, err)
		return
	}

	reply, err := h.chatFor(r).Send(r.Context(), article.ID, req.Message, article.Content)
	if errors.Is(err, chat.ErrEmptyMessage) {
		badRequest(w, r, err.Error())
		return
	}
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, reply)
}

func (h *KnowledgeHandler) ChatClear(w http.ResponseWriter, r *http.Request) {
	article, err := h.knowledgeService.BySlug(r.Context(), viewer(r), r.PathValue("slug"))
	if err != nil {
		loadError(w, r, err)
		return
	}

	err = h.chatFor(r).ClearHistory(r.Context(), article.ID)
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *KnowledgeHandler) AcceptConsent(w http.ResponseWriter, r *http.Request) {
	err := clientFlags(h.store, r).AcceptChatConsent(r.Context())
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, map[string]bool{"chat_consent": true})
}

func (h *KnowledgeHandler) consented(r *http.Request) (bool, error) {
	if !h.needsConsent {
		return true, nil
	}
	return clientFlags(h.store, r).ChatConsent(r.Context())
}
