package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/courierhq/courier/pkg/engine"
	"github.com/courierhq/courier/pkg/storage"
)

// persistTimeout bounds the history write that follows each execution.
const persistTimeout = 5 * time.Second

// API wires the execution engine and the record store to HTTP routes
type API struct {
	engine *engine.Engine
	store  storage.Store
}

// New creates the API handler set
func New(eng *engine.Engine, store storage.Store) *API {
	return &API{
		engine: eng,
		store:  store,
	}
}

// RegisterRoutes registers courier endpoints
func (api *API) RegisterRoutes(r *mux.Router) {
	// Execution
	r.HandleFunc("/api/request", api.handleExecute).Methods(http.MethodPost)

	// History
	r.HandleFunc("/api/history", api.handleListHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/history", api.handleClearHistory).Methods(http.MethodDelete)
	r.HandleFunc("/api/history/{id}", api.handleGetRecord).Methods(http.MethodGet)
	r.HandleFunc("/api/history/{id}", api.handleDeleteRecord).Methods(http.MethodDelete)

	// System
	r.HandleFunc("/api/health", api.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/", api.handleRoot).Methods(http.MethodGet)
}

// executeRequest is the wire shape accepted by POST /api/request
type executeRequest struct {
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers"`
	Body     string            `json:"body"`
	BodyType string            `json:"bodyType"`
}

type executeResponse struct {
	Success   bool           `json:"success"`
	Response  engine.Outcome `json:"response"`
	HistoryID string         `json:"historyId,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// handleExecute runs one request against its origin and records the exchange
func (api *API) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	bodyType, err := engine.ParseBodyType(req.BodyType)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	desc := engine.Request{
		Method:   req.Method,
		URL:      req.URL,
		Headers:  req.Headers,
		Body:     req.Body,
		BodyType: bodyType,
	}
	if err := desc.Validate(); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// The outbound call runs on a fresh context: a caller hanging up must
	// not abort an exchange that is already in flight, it still completes
	// and gets recorded.
	outcome, execErr := api.engine.Execute(context.Background(), desc)

	resp := executeResponse{
		Success:  execErr == nil,
		Response: outcome,
	}
	if execErr != nil {
		resp.Error = execErr.Error()
	}

	record := &storage.Exchange{
		Method:   strings.ToUpper(strings.TrimSpace(req.Method)),
		URL:      req.URL,
		Headers:  req.Headers,
		Body:     req.Body,
		BodyType: string(bodyType),
		Response: outcome,
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if id, err := api.store.Create(ctx, record); err != nil {
		// Delivering the response outranks persisting it.
		log.Printf("[HISTORY] failed to persist exchange: %v", err)
	} else {
		resp.HistoryID = id
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleListHistory returns recent exchanges, newest first
func (api *API) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := storage.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	history, err := api.store.ListRecent(ctx, limit)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Error: fmt.Sprintf("failed to list history: %v", err),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"history": history,
	})
}

// handleGetRecord returns a single exchange by id
func (api *API) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	record, err := api.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, errorResponse{Error: "no such record"})
			return
		}
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Error: fmt.Sprintf("failed to load record: %v", err),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"record":  record,
	})
}

// handleDeleteRecord removes a single exchange. Deleting an id that is
// already gone succeeds.
func (api *API) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := api.store.DeleteByID(ctx, id); err != nil {
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Error: fmt.Sprintf("failed to delete record: %v", err),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleClearHistory removes every stored exchange
func (api *API) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := api.store.DeleteAll(ctx); err != nil {
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Error: fmt.Sprintf("failed to clear history: %v", err),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleHealth returns system health
func (api *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := api.store.Ping(ctx); err != nil {
		health["storage"] = "unhealthy"
		health["status"] = "degraded"
	} else {
		health["storage"] = "healthy"
	}

	respondJSON(w, http.StatusOK, health)
}

// handleRoot confirms the service is up
func (api *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "courier",
		"status":  "ok",
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
