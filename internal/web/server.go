package web

import (
	"embed"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quillon-fi/ovm/internal/logger"
	"github.com/quillon-fi/ovm/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

//go:embed static/*
var staticFiles embed.FS

//go:embed static/index.html
var dashboardHTML []byte

// WebServer handles HTTP requests for vault data visualization
type WebServer struct {
	router *mux.Router
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Static files
	staticHandler := http.FileServer(http.FS(staticFiles))
	ws.router.PathPrefix("/static/").Handler(http.StripPrefix("/", staticHandler))

	// Dashboard routes
	ws.router.HandleFunc("/", ws.handleDashboard).Methods("GET")
	ws.router.HandleFunc("/dashboard", ws.handleDashboard).Methods("GET")

	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Prometheus scrape endpoint
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/cycles/{id}", ws.handleGetCycle).Methods("GET")
	api.HandleFunc("/strategy-parameters", ws.handleGetStrategyParameters).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/deposits", ws.handleGetDeposits).Methods("GET")
	api.HandleFunc("/withdrawals", ws.handleGetWithdrawals).Methods("GET")
	api.HandleFunc("/performance", ws.handleGetPerformanceMetrics).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var hasErrors bool

	cycleInfo := map[string]interface{}{
		"current_cycle":   0,
		"last_cycle_time": nil,
		"last_phase":      "unknown",
	}
	latestCycle, cycleErr := state.GetRecentCycles(1)
	if cycleErr == nil && len(latestCycle) > 0 {
		cycle := latestCycle[0]
		cycleInfo = map[string]interface{}{
			"current_cycle":   cycle.CycleNumber,
			"last_cycle_time": cycle.Timestamp,
			"last_phase":      cycle.Phase,
		}
	} else if cycleErr != nil {
		hasErrors = true
	}
	if counter, err := state.GetCurrentCycleNumber(); err == nil {
		cycleInfo["cycle_counter"] = counter
	}

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "ovm-options-vault-manager",
			"version": "1.0.0",
		},
		"ovm_status": map[string]interface{}{
			"database_healthy":  dbHealthy,
			"has_recent_errors": hasErrors,
			"cycle_info":        cycleInfo,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleDashboard serves the main dashboard HTML
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(dashboardHTML)
}

// handleGetCycles returns paginated cycle data
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)

	cycles, err := state.GetRecentCycles(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent cycles")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}

	response := map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCycle returns a specific cycle by ID
func (ws *WebServer) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	idStr := vars["id"]

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid cycle ID")
		return
	}

	cycle, err := state.GetCycleByID(id)
	if err != nil {
		webLogger.Error().Err(err).Int64("cycleId", id).Msg("Failed to get cycle")
		ws.writeErrorResponse(w, http.StatusNotFound, "Cycle not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetLatestCycle returns the most recent cycle
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycles, err := state.GetRecentCycles(1)
	if err != nil || len(cycles) == 0 {
		webLogger.Error().Err(err).Msg("Failed to get latest cycle")
		ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycles[0])
}

// handleGetStrategyParameters returns the active strategy parameters
func (ws *WebServer) handleGetStrategyParameters(w http.ResponseWriter, r *http.Request) {
	params, paramsID, err := state.LoadActiveStrategyParameters("default")
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get strategy parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve strategy parameters")
		return
	}
	if params == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "No active strategy parameters")
		return
	}

	response := map[string]interface{}{
		"params_id":  paramsID,
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetVaultSummary returns vault summary statistics
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := state.GetVaultSummary()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get vault summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve vault summary")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetDeposits returns recent deposit receipts
func (ws *WebServer) handleGetDeposits(w http.ResponseWriter, r *http.Request) {
	receipts, err := state.GetRecentDeposits(parseLimit(r, 20))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get deposit receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve deposits")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"deposits": receipts,
		"count":    len(receipts),
	})
}

// handleGetWithdrawals returns recent withdrawal receipts
func (ws *WebServer) handleGetWithdrawals(w http.ResponseWriter, r *http.Request) {
	receipts, err := state.GetRecentWithdrawals(parseLimit(r, 20))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get withdrawal receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve withdrawals")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"withdrawals": receipts,
		"count":       len(receipts),
	})
}

// handleGetPerformanceMetrics returns performance metrics
func (ws *WebServer) handleGetPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := state.GetPerformanceMetrics()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get performance metrics")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve performance metrics")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, metrics)
}

func parseLimit(r *http.Request, fallback int) int {
	limit := fallback
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
