package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
	"github.com/zhouzirui/z-scout/backend/internal/model/memory"
	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
	"github.com/zhouzirui/z-scout/backend/internal/service/checkpoint"
	"github.com/zhouzirui/z-scout/backend/pkg/utils"
)

// Service 会话历史与偏好记忆的读写接口。
type Service interface {
	History(ctx context.Context, session chat.Session) ([]*schema.Message, error)
	RecordPreference(ctx context.Context, actorID, text string) (string, error)
}

// Handler 会话与偏好相关的HTTP处理器
type Handler struct {
	svc Service
}

// New 创建聊天处理器
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{actorID}/{threadID}", h.handleGetSession)
	r.Post("/preferences", h.handleRecordPreference)
}

type transcriptResponse struct {
	Session  chat.Session   `json:"session"`
	Messages []chat.Message `json:"messages"`
}

// handleGetSession 返回检查点中保存的会话记录
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session := chat.NewSession(chi.URLParam(r, "actorID"), chi.URLParam(r, "threadID"))

	messages, err := h.svc.History(r.Context(), session)
	switch {
	case errors.Is(err, agent.ErrCheckpointerDisabled):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, checkpoint.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcriptResponse{
		Session:  session,
		Messages: chat.Transcript(messages),
	})
}

// handleRecordPreference 保存一条用户偏好
func (h *Handler) handleRecordPreference(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ActorID string `json:"actorId"`
		Text    string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	actorID := chat.NewSession(payload.ActorID, "").ActorID
	id, err := h.svc.RecordPreference(r.Context(), actorID, payload.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, agent.ErrMemoryDisabled) {
			status = http.StatusServiceUnavailable
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"id":        id,
		"namespace": memory.PreferencesNamespace(actorID).String(),
	})
}
