package invocation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
	"github.com/zhouzirui/z-scout/backend/pkg/utils"
)

// Invoker 执行一次完整的代理调用。
type Invoker interface {
	Invoke(ctx context.Context, payload any, observe agent.StepObserver) agent.InvocationResult
}

// Handler 实现托管运行时约定的 /ping 与 /invocations 接口。
type Handler struct {
	invoker Invoker
}

// New 创建调用处理器
func New(invoker Invoker) *Handler {
	return &Handler{invoker: invoker}
}

// RegisterHealthRoutes 注册健康检查路由，不应套用限流。
func (h *Handler) RegisterHealthRoutes(r chi.Router) {
	r.Get("/ping", h.handlePing)
}

// RegisterRoutes 注册调用路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/invocations", h.handleInvoke)
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "Healthy"})
}

// handleInvoke 校验失败返回 400，执行失败返回 500，二者都携带 {error, result: null}。
func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	payload, err := DecodePayload(r)
	if err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, agent.InvocationResult{Error: err.Error()})
		return
	}

	result := h.invoker.Invoke(r.Context(), payload, nil)
	utils.RespondJSON(w, StatusFor(result.Err()), result)
}

// DecodePayload 读取任意 JSON 请求体，非法 JSON 视为格式错误。
func DecodePayload(r *http.Request) (any, error) {
	var payload any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, agent.ErrInvalidPayload
	}
	return payload, nil
}

// StatusFor 将调用错误映射为 HTTP 状态码。
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, agent.ErrInvalidPayload), errors.Is(err, agent.ErrEmptyPrompt):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
