// Package api provides HTTP handlers for greenlight coordination endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/freightpilot/greenlight/internal/models"
)

// requirePost rejects non-POST requests with 405 and an Allow header.
// Returns false when the request was rejected.
func requirePost(w http.ResponseWriter, r *http.Request, handler string) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	slog.Warn("Server: method not allowed", "handler", handler, "method", r.Method)
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

// decodeJSON decodes the request body, answering 400 on malformed input.
// Returns false when the request was rejected; no state is mutated then.
func decodeJSON(w http.ResponseWriter, r *http.Request, handler string, v interface{}) bool {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Warn("Server: failed to decode JSON", "handler", handler, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return false
	}
	return true
}

// pageEventHandler processes page navigation pings (POST /api/page-ping/).
// A ping from the add-load page with a cargo id arms the key; a ping from
// the emptied add-load page triggers the best-effort auto-finalize path.
func (s *Server) pageEventHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.pageEventHandler: processing page event", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r, "pageEventHandler") {
		return
	}
	var req models.PageEventRequest
	if !decodeJSON(w, r, "pageEventHandler", &req) {
		return
	}

	page := strings.ToLower(strings.TrimSpace(req.Page))
	user := strings.TrimSpace(req.UserName)
	pageState := strings.ToLower(strings.TrimSpace(req.PageState))
	url := strings.TrimSpace(req.URL)

	switch page {
	case "active":
		slog.Info("Server.pageEventHandler: on active cargo page", "user", user, "url", url)
		writeJSONResponse(w, http.StatusOK, models.PageEventResponse{OK: true})
		return
	case "deleted":
		slog.Info("Server.pageEventHandler: on deleted cargo page", "user", user, "url", url)
		writeJSONResponse(w, http.StatusOK, models.PageEventResponse{OK: true})
		return
	case "addload":
		// handled below
	default:
		slog.Info("Server.pageEventHandler: on unknown page", "page", page, "user", user, "url", url)
		writeJSONResponse(w, http.StatusOK, models.PageEventResponse{OK: true})
		return
	}

	cargoID := strings.TrimSpace(req.CargoID)
	if cargoID == "" {
		// The empty add-load page after navigation: echo the apparent
		// result and try to recover the pending episode.
		slog.Info("Server.pageEventHandler: on empty addload page", "user", user, "pageState", pageState, "url", url)
		message := "Publish failed"
		if url == s.addLoadURL {
			message = "Publish successful"
		}
		if user != "" && pageState == "empty" {
			// Auto-finalize is best-effort: a failure here must never
			// fail the ping itself.
			if cargoKey, finalized, err := s.coord.AutoFinalize(user, s.recoveryWindow); err != nil {
				slog.Error("Server.pageEventHandler: auto-finalize failed", "error", err, "user", user)
			} else if finalized {
				slog.Info("Server.pageEventHandler: auto-finalized pending episode", "cargoKey", cargoKey, "user", user)
			}
		}
		writeJSONResponse(w, http.StatusOK, models.PageEventResponse{OK: true, Message: message})
		return
	}

	dec, err := s.coord.ArmOnPageEntry(user, cargoID, req.BMID)
	if err != nil {
		// Key context could not be resolved; skip coordination rather
		// than storing under an empty key.
		slog.Warn("Server.pageEventHandler: unresolvable key, skipping arm", "error", err, "user", user, "cargoID", cargoID)
		writeJSONResponse(w, http.StatusOK, models.PageEventResponse{OK: true})
		return
	}
	writeJSONResponse(w, http.StatusOK, models.PageEventResponse{
		OK:       true,
		Go:       dec.Go,
		ForDays:  dec.ForDays,
		CargoKey: dec.CargoKey,
	})
}

// greenlightCheckHandler converts an armed key into a one-time go=true
// (POST /api/greenlight/).
func (s *Server) greenlightCheckHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.greenlightCheckHandler: processing check", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r, "greenlightCheckHandler") {
		return
	}
	var req models.GreenlightCheckRequest
	if !decodeJSON(w, r, "greenlightCheckHandler", &req) {
		return
	}

	user := strings.TrimSpace(req.UserName)
	cargoID := strings.TrimSpace(req.CargoID)
	if user == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user_name"))
		return
	}
	if cargoID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing cargo_id"))
		return
	}

	dec, err := s.coord.CheckAndConsume(user, cargoID, req.BMID)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unresolvable cargo key"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.GreenlightCheckResponse{
		OK:       true,
		Go:       dec.Go,
		CargoKey: dec.CargoKey,
	})
}

// pressAckHandler processes publish-phase reports (POST /api/press-ack/).
func (s *Server) pressAckHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.pressAckHandler: processing phase report", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r, "pressAckHandler") {
		return
	}
	var req models.PressAckRequest
	if !decodeJSON(w, r, "pressAckHandler", &req) {
		return
	}

	user := strings.TrimSpace(req.UserName)
	cargoID := strings.TrimSpace(req.CargoID)
	slog.Debug("Server.pressAckHandler: phase report",
		"phase", req.Phase, "user", user, "cargoID", cargoID, "loadState", req.LoadState)

	outcome := s.coord.ReportPhase(user, cargoID, req.BMID, req.Phase, req.LoadState, req.PublishDays)
	writeJSONResponse(w, http.StatusOK, models.PressAckResponse{
		OK:       true,
		Success:  outcome.Success,
		Message:  outcome.Message,
		CargoID:  cargoID,
		UserName: user,
	})
}

// setGreenlightHandler is the explicit arm override (POST /api/greenlight/set).
func (s *Server) setGreenlightHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.setGreenlightHandler: processing set", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r, "setGreenlightHandler") {
		return
	}
	var req models.SetGreenlightRequest
	if !decodeJSON(w, r, "setGreenlightHandler", &req) {
		return
	}

	user := strings.TrimSpace(req.UserName)
	cargoID := strings.TrimSpace(req.CargoID)
	if user == "" || cargoID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user_name or cargo_id"))
		return
	}
	press := true
	if req.Press != nil {
		press = *req.Press
	}

	armed, cargoKey, err := s.coord.ForceSetArm(user, cargoID, req.BMID, press)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unresolvable cargo key"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SetGreenlightResponse{
		OK:       true,
		Armed:    armed,
		CargoKey: cargoKey,
	})
}

// deleteGreenlightHandler acknowledges the client's post-confirmation ping
// (POST /api/greenlight/delete). It only logs; the press was consumed by the
// greenlight check.
func (s *Server) deleteGreenlightHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r, "deleteGreenlightHandler") {
		return
	}
	var req struct {
		UserName string `json:"user_name"`
	}
	if !decodeJSON(w, r, "deleteGreenlightHandler", &req) {
		return
	}
	slog.Info("Server.deleteGreenlightHandler: after-confirm ping", "user", strings.TrimSpace(req.UserName))
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"ok": true, "go": true})
}

// pingActiveHandler acknowledges a bare active-page ping (POST /api/ping/active).
func (s *Server) pingActiveHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r, "pingActiveHandler") {
		return
	}
	slog.Debug("Server.pingActiveHandler: active page ping")
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// pingDeletedHandler acknowledges a bare deleted-page ping (POST /api/ping/deleted).
func (s *Server) pingDeletedHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r, "pingDeletedHandler") {
		return
	}
	slog.Debug("Server.pingDeletedHandler: deleted page ping")
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// healthHandler provides a health check endpoint for monitoring and load balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}
