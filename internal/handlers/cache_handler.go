package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/enumerator"
	"github.com/shaibs3/pagecache/internal/maintenance"
	"github.com/shaibs3/pagecache/internal/renderer"
	"github.com/shaibs3/pagecache/internal/scheduler"
)

// Trigger actions
const (
	ActionRefreshAll    = "refresh-all"
	ActionRefreshRecent = "refresh-recent"
	ActionRefreshNews   = "refresh-news"
	ActionRefreshSingle = "refresh-single"
	ActionClearExpired  = "clear-expired"
	ActionStats         = "stats"
)

var refreshModes = map[string]enumerator.Mode{
	ActionRefreshAll:    enumerator.ModeFull,
	ActionRefreshRecent: enumerator.ModeRecent,
	ActionRefreshNews:   enumerator.ModeNewsWindow,
}

// BatchRunner runs and sizes refresh batches
type BatchRunner interface {
	RunBatch(ctx context.Context, mode enumerator.Mode, batchSize, offset int) (scheduler.Report, error)
	Info(ctx context.Context, mode enumerator.Mode, batchSize int) (scheduler.Plan, error)
}

// PageRefresher renders and stores one path
type PageRefresher interface {
	RenderAndStore(ctx context.Context, path string) renderer.Outcome
}

// CacheMaintainer expires and summarizes the cache
type CacheMaintainer interface {
	ExpireStale(ctx context.Context) (maintenance.ExpireResult, error)
	Stats(ctx context.Context) (maintenance.Stats, error)
}

// CacheHandler serves the admin trigger endpoint
type CacheHandler struct {
	runner           BatchRunner
	refresher        PageRefresher
	maintainer       CacheMaintainer
	adminPassword    string
	defaultBatchSize int
	logger           *zap.Logger
}

func NewCacheHandler(runner BatchRunner, refresher PageRefresher, maintainer CacheMaintainer, adminPassword string, defaultBatchSize int, logger *zap.Logger) *CacheHandler {
	if defaultBatchSize <= 0 {
		defaultBatchSize = 50
	}
	return &CacheHandler{
		runner:           runner,
		refresher:        refresher,
		maintainer:       maintainer,
		adminPassword:    adminPassword,
		defaultBatchSize: defaultBatchSize,
		logger:           logger.Named("cache_handler"),
	}
}

// RegisterRoutes registers the routes for this handler
func (h *CacheHandler) RegisterRoutes(router *mux.Router, logger *zap.Logger) {
	router.HandleFunc("/v1/cache", h.handleTrigger).Methods(http.MethodGet, http.MethodPost)
}

// authorized compares in constant time; an empty secret authorizes nobody
func (h *CacheHandler) authorized(password string) bool {
	if h.adminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(h.adminPassword)) == 1
}

type batchParams struct {
	batchSize int
	offset    int
	info      bool
}

func (h *CacheHandler) parseBatchParams(req *http.Request) (batchParams, error) {
	q := req.URL.Query()
	p := batchParams{batchSize: h.defaultBatchSize}
	if v := q.Get("batchSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, fmt.Errorf("batchSize must be a positive integer, got %q", v)
		}
		p.batchSize = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, fmt.Errorf("offset must be a non-negative integer, got %q", v)
		}
		p.offset = n
	}
	if v := q.Get("info"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("info must be a boolean, got %q", v)
		}
		p.info = b
	}
	return p, nil
}

func (h *CacheHandler) handleTrigger(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	action := q.Get("action")

	if !h.authorized(q.Get("password")) {
		h.logger.Warn("unauthorized trigger call", zap.String("action", action), zap.String("remote", req.RemoteAddr))
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	if mode, ok := refreshModes[action]; ok {
		h.handleRefresh(w, req, action, mode)
		return
	}

	switch action {
	case ActionRefreshSingle:
		h.handleRefreshSingle(w, req)
	case ActionClearExpired:
		h.handleClearExpired(w, req)
	case ActionStats:
		h.handleStats(w, req)
	case "":
		writeError(w, h.logger, http.StatusBadRequest, "action is required")
	default:
		writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action))
	}
}

func (h *CacheHandler) handleRefresh(w http.ResponseWriter, req *http.Request, action string, mode enumerator.Mode) {
	params, err := h.parseBatchParams(req)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	if params.info {
		plan, err := h.runner.Info(req.Context(), mode, params.batchSize)
		if err != nil {
			h.writeRunError(w, action, err)
			return
		}
		plan.Action = action
		writeJSON(w, h.logger, http.StatusOK, plan)
		return
	}

	report, err := h.runner.RunBatch(req.Context(), mode, params.batchSize, params.offset)
	if err != nil {
		h.writeRunError(w, action, err)
		return
	}
	report.Action = action
	writeJSON(w, h.logger, http.StatusOK, report)
}

func (h *CacheHandler) writeRunError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, scheduler.ErrInvalidBatch) || errors.Is(err, enumerator.ErrUnknownMode) {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("refresh failed", zap.String("action", action), zap.Error(err))
	writeError(w, h.logger, http.StatusInternalServerError, err.Error())
}

type singleResponse struct {
	Action string `json:"action"`
	renderer.Outcome
}

func (h *CacheHandler) handleRefreshSingle(w http.ResponseWriter, req *http.Request) {
	path := strings.TrimSpace(req.URL.Query().Get("path"))
	if path == "" {
		writeError(w, h.logger, http.StatusBadRequest, "path is required for refresh-single")
		return
	}
	if !strings.HasPrefix(path, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "path must start with /")
		return
	}
	out := h.refresher.RenderAndStore(req.Context(), path)
	writeJSON(w, h.logger, http.StatusOK, singleResponse{Action: ActionRefreshSingle, Outcome: out})
}

type expireResponse struct {
	Action string `json:"action"`
	maintenance.ExpireResult
}

func (h *CacheHandler) handleClearExpired(w http.ResponseWriter, req *http.Request) {
	res, err := h.maintainer.ExpireStale(req.Context())
	if err != nil {
		h.logger.Error("clear-expired failed", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, expireResponse{Action: ActionClearExpired, ExpireResult: res})
}

type statsResponse struct {
	Action string `json:"action"`
	maintenance.Stats
}

func (h *CacheHandler) handleStats(w http.ResponseWriter, req *http.Request) {
	st, err := h.maintainer.Stats(req.Context())
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, statsResponse{Action: ActionStats, Stats: st})
}
