package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/httputil"
	"github.com/skillswap/chat-server/internal/middleware"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/service"
)

type ConversationHandler struct {
	convService    *service.ConversationService
	messageService *service.MessageService
}

func NewConversationHandler(convService *service.ConversationService, messageService *service.MessageService) *ConversationHandler {
	return &ConversationHandler{
		convService:    convService,
		messageService: messageService,
	}
}

// Routes expects the auth middleware to have run.
func (h *ConversationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.FindOrCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/messages", h.ListMessages)
		r.Post("/messages", h.Send)
		r.Put("/archive", h.Archive)
		r.Post("/read", h.MarkRead)
	})

	return r
}

type createConversationRequest struct {
	PartnerID      string  `json:"partnerId" validate:"required,max=64"`
	SkillOffered   *string `json:"skillOffered" validate:"omitempty,max=64"`
	SkillRequested *string `json:"skillRequested" validate:"omitempty,max=64"`
	InitialMessage string  `json:"initialMessage"`
}

type sendMessageRequest struct {
	Content     string `json:"content"`
	ClientToken string `json:"clientToken"`
}

// principalOrReject is a guard against routing mistakes; the auth
// middleware already rejected anonymous requests.
func principalOrReject(w http.ResponseWriter, r *http.Request) *model.Principal {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		httputil.WriteError(w, apperrors.Unauthenticated(apperrors.AuthReasonMissing, nil))
	}
	return principal
}

// GET /v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := principalOrReject(w, r)
	if principal == nil {
		return
	}

	convs, err := h.convService.ListForPrincipal(r.Context(), principal.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// POST /v1/conversations
// Returns the existing active conversation for the pair, or creates one.
func (h *ConversationHandler) FindOrCreate(w http.ResponseWriter, r *http.Request) {
	principal := principalOrReject(w, r)
	if principal == nil {
		return
	}

	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	conv, created, err := h.convService.FindOrCreate(r.Context(), principal, service.FindOrCreateParams{
		PartnerID:      req.PartnerID,
		SkillOffered:   req.SkillOffered,
		SkillRequested: req.SkillRequested,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"conversation": conv,
		"created":      created,
	})
}

// GET /v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := principalOrReject(w, r)
	if principal == nil {
		return
	}

	conv, err := h.convService.Get(r.Context(), principal.ID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
}

// GET /v1/conversations/{id}/messages?afterSeq=&limit=
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	principal := principalOrReject(w, r)
	if principal == nil {
		return
	}

	params, err := ParseHistoryParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	msgs, err := h.messageService.ListMessages(r.Context(), principal.ID, model.ListMessagesParams{
		ConversationID: chi.URLParam(r, "id"),
		AfterSeq:       params.AfterSeq,
		Limit:          params.Limit,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	nextAfterSeq := params.AfterSeq
	for _, msg := range msgs {
		if msg.Seq > nextAfterSeq {
			nextAfterSeq = msg.Seq
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages":     msgs,
		"nextAfterSeq": nextAfterSeq,
		"hasMore":      len(msgs) == params.Limit,
	})
}

// POST /v1/conversations/{id}/messages
// Same append and publish path as the WebSocket send frame.
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	principal := principalOrReject(w, r)
	if principal == nil {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	msg, err := h.messageService.Send(r.Context(), principal, service.SendParams{
		ConversationID: chi.URLParam(r, "id"),
		Content:        req.Content,
		ClientToken:    req.ClientToken,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     msg,
		"clientToken": req.ClientToken,
	})
}

// PUT /v1/conversations/{id}/archive
func (h *ConversationHandler) Archive(w http.ResponseWriter, r *http.Request) {
	principal := principalOrReject(w, r)
	if principal == nil {
		return
	}

	conv, err := h.convService.Archive(r.Context(), principal.ID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
}

// POST /v1/conversations/{id}/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	principal := principalOrReject(w, r)
	if principal == nil {
		return
	}

	updated, err := h.messageService.MarkRead(r.Context(), principal.ID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}
