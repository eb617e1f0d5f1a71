package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/wallsense-data/wallsense/internal/db"
	"github.com/wallsense-data/wallsense/internal/engine"
	"github.com/wallsense-data/wallsense/internal/monitoring"
	"github.com/wallsense-data/wallsense/internal/version"
	"github.com/wallsense-data/wallsense/internal/wifi"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	engine *engine.Engine
	db     *db.DB
}

func NewServer(e *engine.Engine, database *db.DB) *Server {
	return &Server{
		engine: e,
		db:     database,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack delegates to the wrapped writer so websocket upgrades work through
// the logging middleware.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
	}
	return hijacker.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/statistics", s.showStatistics)
	mux.HandleFunc("/api/zones", s.listZones)
	mux.HandleFunc("/api/zone", s.showZone)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/networks", s.listNetworks)
	mux.HandleFunc("/api/calibrations", s.listCalibrations)
	mux.HandleFunc("/api/calibrate", s.startCalibration)
	mux.HandleFunc("/api/monitoring/start", s.startMonitoring)
	mux.HandleFunc("/api/monitoring/stop", s.stopMonitoring)
	mux.HandleFunc("/api/sensitivity", s.setSensitivity)
	mux.HandleFunc("/api/counters", s.showCounters)
	mux.HandleFunc("/ws", s.streamEvents)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write response")
	}
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, map[string]string{
		"status":  "ok",
		"state":   s.engine.State().String(),
		"version": version.Version,
	})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, s.engine.Status())
}

func (s *Server) showStatistics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, s.engine.NetworkStats())
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, s.engine.ZoneStatuses())
}

func (s *Server) showZone(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'id' parameter")
		return
	}

	status, ok := s.engine.ZoneStatus(id)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Unknown zone %q", id))
		return
	}
	s.writeJSON(w, status)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Event store not configured")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	events, err := s.db.RecentEvents(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve events: %v", err))
		return
	}
	s.writeJSON(w, events)
}

func (s *Server) listCalibrations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Event store not configured")
		return
	}

	runs, err := s.db.RecentCalibrations(20)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve calibrations: %v", err))
		return
	}
	s.writeJSON(w, runs)
}

// networkAPI flattens the map keyed by network identity into a JSON-friendly
// list. A struct-keyed map does not marshal.
type networkAPI struct {
	Network  wifi.NetworkID  `json:"network"`
	Baseline engine.Baseline `json:"baseline"`
}

func (s *Server) listNetworks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	baselines := s.engine.Baselines()
	networks := make([]networkAPI, 0, len(baselines))
	for id, b := range baselines {
		networks = append(networks, networkAPI{Network: id, Baseline: b})
	}
	s.writeJSON(w, networks)
}

func (s *Server) startCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	seconds := 30
	if d := r.FormValue("seconds"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'seconds' parameter")
			return
		}
		seconds = parsed
	}

	if err := s.engine.Calibrate(time.Duration(seconds) * time.Second); err != nil {
		if errors.Is(err, engine.ErrAlreadyCalibrating) {
			s.writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, map[string]any{
		"calibrating": true,
		"seconds":     seconds,
	})
}

func (s *Server) startMonitoring(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.engine.Start(); err != nil {
		switch {
		case errors.Is(err, engine.ErrNotCalibrated), errors.Is(err, engine.ErrAlreadyCalibrating):
			s.writeJSONError(w, http.StatusConflict, err.Error())
		default:
			s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, map[string]string{"state": s.engine.State().String()})
}

func (s *Server) stopMonitoring(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	s.engine.Stop()
	s.writeJSON(w, map[string]string{"state": s.engine.State().String()})
}

func (s *Server) setSensitivity(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, map[string]float64{"sensitivity": s.engine.Sensitivity()})
	case http.MethodPost:
		raw := r.FormValue("value")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid 'value' parameter %q", raw))
			return
		}
		if err := s.engine.SetSensitivity(value); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, map[string]float64{"sensitivity": s.engine.Sensitivity()})
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) showCounters(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, monitoring.CounterValues())
}
