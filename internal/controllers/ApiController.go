package controllers

import (
	"anonbot/internal/models"
	"anonbot/internal/persistence/interfaces"
	"anonbot/internal/providers"
	"anonbot/internal/services"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const maxRequestBodySize = 1 << 20 // 1 MB

const activeWindow = 7 * 24 * time.Hour

type ApiController struct {
	logger    providers.Logger
	service   services.FeedbackServiceInterface
	router    services.ReplyRouterInterface
	scheduler interfaces.SchedulerInterface
	metrics   providers.MetricsProviderInterface
	clock     providers.Clock
}

func NewApiController(logger providers.Logger, service services.FeedbackServiceInterface, router services.ReplyRouterInterface, scheduler interfaces.SchedulerInterface, metrics providers.MetricsProviderInterface, clock providers.Clock) *ApiController {
	return &ApiController{
		logger:    logger,
		service:   service,
		router:    router,
		scheduler: scheduler,
		metrics:   metrics,
		clock:     clock,
	}
}

type messageRequest struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
}

type messageResponse struct {
	Verdict string  `json:"verdict"`
	Targets []int64 `json:"targets,omitempty"`
	// Welcome asks the transport to greet a first-time sender.
	Welcome bool `json:"welcome,omitempty"`
}

type historyResponse struct {
	Entries []models.HistoryEntry `json:"entries"`
}

type userRequest struct {
	UserID int64 `json:"user_id"`
}

type modeRequest struct {
	Mode          string `json:"mode"`
	TargetGroupID *int64 `json:"target_group_id"`
}

type forwardRequest struct {
	ChatID             int64 `json:"chat_id"`
	ForwardedMessageID int64 `json:"forwarded_message_id"`
	UserID             int64 `json:"user_id"`
	UserMessageID      int64 `json:"user_message_id"`
}

type statsResponse struct {
	models.Stats
	ActiveUsers7d int   `json:"active_users_7d"`
	ReplyRoutes   int64 `json:"reply_routes"`
}

type idsResponse struct {
	IDs []int64 `json:"ids"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUserBlocked):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	if status != http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	return true
}

func queryInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: query parameter %s must be an integer", models.ErrInvalidArgument, name)
	}
	return v, nil
}

func verdictStatus(v services.Verdict) int {
	switch v {
	case services.VerdictAdmitted:
		return http.StatusOK
	case services.VerdictRateLimited:
		return http.StatusTooManyRequests
	case services.VerdictBlocked:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// ReceiveMessage runs admission for one inbound user message and tells the
// transport where to forward it.
func (ac *ApiController) ReceiveMessage(w http.ResponseWriter, r *http.Request) {
	var payload messageRequest
	if !decodeBody(w, r, &payload) {
		return
	}

	now := ac.clock.Now()
	verdict := ac.service.OnMessage(payload.UserID, payload.DisplayName, now)
	ac.metrics.IncVerdict(verdict.String())

	resp := messageResponse{Verdict: verdict.String()}
	if verdict.Admitted() {
		welcome, err := ac.service.Welcome(payload.UserID)
		if err != nil {
			ac.logger.Errorf(providers.TypeBot, "Welcome flag: %s", err)
		}
		resp.Welcome = welcome
		ac.service.RecordMessage(payload.UserID, payload.MessageType, payload.Text, now)
		resp.Targets = ac.service.DeliveryTargets()
	} else {
		ac.logger.Debugf(providers.TypeBot, "Message from %d rejected: %s", payload.UserID, verdict)
	}
	writeJSON(w, verdictStatus(verdict), resp)
}

func (ac *ApiController) Block(w http.ResponseWriter, r *http.Request) {
	var payload userRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := ac.service.AdminBlock(payload.UserID); err != nil {
		ac.logger.Warnf(providers.TypeAdmin, "Block %d failed: %s", payload.UserID, err)
		writeError(w, err)
		return
	}
	ac.logger.Infof(providers.TypeAdmin, "User %d blocked", payload.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) Unblock(w http.ResponseWriter, r *http.Request) {
	var payload userRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := ac.service.AdminUnblock(payload.UserID); err != nil {
		ac.logger.Warnf(providers.TypeAdmin, "Unblock %d failed: %s", payload.UserID, err)
		writeError(w, err)
		return
	}
	ac.logger.Infof(providers.TypeAdmin, "User %d unblocked", payload.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) GetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.service.Mode())
}

func (ac *ApiController) SetMode(w http.ResponseWriter, r *http.Request) {
	var payload modeRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	mode, err := models.ParseMode(payload.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ac.service.AdminSetMode(mode, payload.TargetGroupID); err != nil {
		ac.logger.Warnf(providers.TypeAdmin, "Mode change to %s failed: %s", mode, err)
		writeError(w, err)
		return
	}
	ac.logger.Infof(providers.TypeAdmin, "Mode switched to %s", mode)
	writeJSON(w, http.StatusOK, ac.service.Mode())
}

func (ac *ApiController) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:         ac.service.AdminGetStats(),
		ActiveUsers7d: ac.service.ActiveUsers(ac.clock.Now().Add(-activeWindow)),
		ReplyRoutes:   ac.router.Pending(),
	})
}

func (ac *ApiController) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	rec, ok := ac.service.User(id)
	if !ok {
		writeError(w, models.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (ac *ApiController) GetTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, idsResponse{IDs: ac.service.DeliveryTargets()})
}

func (ac *ApiController) GetRecipients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, idsResponse{IDs: ac.service.Recipients()})
}

// Save writes a snapshot synchronously.
// Save queues a snapshot write. Requests arriving while one is pending
// share it.
func (ac *ApiController) Save(w http.ResponseWriter, r *http.Request) {
	ac.scheduler.RequestSave()
	w.WriteHeader(http.StatusAccepted)
}

// GetHistory returns the most recent admitted messages, oldest first.
func (ac *ApiController) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := int64(0)
	if r.URL.Query().Has("limit") {
		var err error
		if limit, err = queryInt(r, "limit"); err != nil || limit < 0 {
			writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", models.ErrInvalidArgument))
			return
		}
	}
	entries := ac.service.History(int(limit))
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Entries: entries})
}

// Forward records which user message a forwarded copy came from so that
// admin replies can be routed back.
func (ac *ApiController) Forward(w http.ResponseWriter, r *http.Request) {
	var payload forwardRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if payload.UserID <= 0 || payload.ForwardedMessageID <= 0 {
		writeError(w, fmt.Errorf("%w: user_id and forwarded_message_id must be positive", models.ErrInvalidArgument))
		return
	}
	ac.router.Remember(payload.ChatID, payload.ForwardedMessageID, services.ReplyRoute{
		UserID:        payload.UserID,
		UserMessageID: payload.UserMessageID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) GetReplyRoute(w http.ResponseWriter, r *http.Request) {
	chat, err := queryInt(r, "chat")
	if err != nil {
		writeError(w, err)
		return
	}
	msg, err := queryInt(r, "msg")
	if err != nil {
		writeError(w, err)
		return
	}
	route, err := ac.router.Resolve(chat, msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}
