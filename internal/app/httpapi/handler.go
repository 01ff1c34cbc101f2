// Package httpapi exposes the REST API for the application services.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	gopsmem "github.com/shirou/gopsutil/v3/mem"
	"github.com/tidwall/gjson"

	app "github.com/advanced-ai/backend/internal/app"
	"github.com/advanced-ai/backend/internal/app/domain/generation"
	"github.com/advanced-ai/backend/internal/app/domain/workflow"
	"github.com/advanced-ai/backend/internal/app/metrics"
	"github.com/advanced-ai/backend/internal/app/services/engine"
	"github.com/advanced-ai/backend/internal/app/services/workflows"
	"github.com/advanced-ai/backend/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a router exposing the REST API under the configured
// prefix, plus /health and /metrics at the root.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix(application.Settings().APIPrefix).Subrouter()
	api.HandleFunc("/generate", h.generate).Methods(http.MethodPost)
	api.HandleFunc("/analyze-sentiment", h.analyzeSentiment).Methods(http.MethodPost)
	api.HandleFunc("/execute-code", h.executeCode).Methods(http.MethodPost)
	api.HandleFunc("/executions/{id}", h.getExecution).Methods(http.MethodGet)
	api.HandleFunc("/workflow", h.runWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflow/{id}", h.getWorkflowRun).Methods(http.MethodGet)
	api.HandleFunc("/workflows", h.listWorkflows).Methods(http.MethodGet)
	api.HandleFunc("/telegram-webhook", h.telegramWebhook).Methods(http.MethodPost)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	settings := h.app.Settings()

	stats := map[string]any{}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats["cpu_percent"] = percents[0]
	}
	if vm, err := gopsmem.VirtualMemory(); err == nil {
		stats["memory_percent"] = vm.UsedPercent
	}

	var uptime string
	if started := h.app.StartedAt(); !started.IsZero() {
		uptime = time.Since(started).Round(time.Second).String()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"app":       settings.AppName,
		"version":   settings.Version,
		"timestamp": time.Now().UTC(),
		"uptime":    uptime,
		"system":    stats,
	})
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt   string               `json:"prompt"`
		Messages []generation.Message `json:"messages"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := h.app.Engine.GenerateText(r.Context(), payload.Prompt, payload.Messages)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrEmptyPrompt) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) analyzeSentiment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	analysis, err := h.app.Engine.AnalyzeSentiment(r.Context(), payload.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *handler) executeCode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code     string         `json:"code"`
		Language string         `json:"language"`
		Inputs   map[string]any `json:"inputs"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(payload.Code) == "" {
		writeError(w, http.StatusBadRequest, errors.New("code is required"))
		return
	}

	job, err := h.app.Compute.Execute(r.Context(), payload.Code, payload.Language, payload.Inputs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handler) getExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.app.Compute.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handler) runWorkflow(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		WorkflowType string         `json:"workflow_type"`
		Inputs       map[string]any `json:"inputs"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	run, err := h.app.Workflows.Run(r.Context(), workflow.Type(payload.WorkflowType), payload.Inputs)
	if err != nil {
		var verr *workflows.ValidationError
		switch {
		case errors.Is(err, workflows.ErrUnknownWorkflow), errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, err)
		case run.ID == "":
			// The run was never persisted, so there is no record to hand back.
			writeError(w, http.StatusInternalServerError, err)
		default:
			// The run record carries the failure detail.
			writeJSON(w, http.StatusOK, run)
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handler) getWorkflowRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := h.app.Workflows.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handler) listWorkflows(w http.ResponseWriter, r *http.Request) {
	typ := workflow.Type(r.URL.Query().Get("type"))
	runs, err := h.app.Workflows.ListRuns(r.Context(), typ)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available_types": h.app.Workflows.Types(),
		"runs":            runs,
	})
}

// telegramWebhook accepts Telegram bot updates and answers text messages with
// the engine. Non-message updates are acknowledged and dropped.
func (h *handler) telegramWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	update := gjson.ParseBytes(body)
	if !update.Get("update_id").Exists() {
		writeError(w, http.StatusBadRequest, errors.New("not a telegram update"))
		return
	}

	chatID := update.Get("message.chat.id")
	text := update.Get("message.text")
	if !chatID.Exists() || text.String() == "" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	resp, err := h.app.Engine.GenerateText(r.Context(), text.String(), nil)
	if err != nil {
		h.log.WithError(err).Warn("telegram update could not be answered")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"method":  "sendMessage",
		"chat_id": chatID.Int(),
		"text":    resp.Text,
	})
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
