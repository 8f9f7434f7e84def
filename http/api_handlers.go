// Package http 提供API处理器
package http

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"houseprice/db"
	"houseprice/monitoring"
)

// RegisterAPIHandlers 注册所有API处理器
func RegisterAPIHandlers(mux *http.ServeMux, app *App) {
	mux.HandleFunc("GET /api/health", app.handleHealth)

	// 训练与预测记录
	mux.HandleFunc("GET /api/training/log", app.handleTrainingLog)
	mux.HandleFunc("GET /api/predictions", app.handlePredictions)

	// 实时推送
	mux.HandleFunc("GET /api/ws/estimates", app.handleEstimateFeed)
}

type healthResponse struct {
	Status      string              `json:"status"`
	Database    bool                `json:"database"`
	FeedClients int                 `json:"feed_clients"`
	Metrics     monitoring.Snapshot `json:"metrics"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Database: db.Ready(),
		Metrics:  a.Metrics.Snapshot(),
	}
	if a.Hub != nil {
		resp.FeedClients = a.Hub.Clients()
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	if !db.Ready() {
		a.writeError(w, http.StatusServiceUnavailable, "database not available")
		return
	}
	entries, err := db.LoadTrainingLog()
	if err != nil {
		a.Log.Error("load training log", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to load training log")
		return
	}
	if entries == nil {
		entries = []db.TrainingLog{}
	}
	a.writeJSON(w, http.StatusOK, entries)
}

func (a *App) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if !db.Ready() {
		a.writeError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			a.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = l
	}

	predictions, err := db.RecentPredictions(limit)
	if err != nil {
		a.Log.Error("load predictions", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to load predictions")
		return
	}
	if predictions == nil {
		predictions = []db.Prediction{}
	}
	a.writeJSON(w, http.StatusOK, predictions)
}

func (a *App) handleEstimateFeed(w http.ResponseWriter, r *http.Request) {
	if a.Hub == nil {
		a.writeError(w, http.StatusServiceUnavailable, "estimate feed disabled")
		return
	}
	a.Hub.HandleWebSocket(w, r)
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Log.Warn("encode response", zap.Error(err))
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}
