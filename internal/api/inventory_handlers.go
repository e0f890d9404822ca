// Package api provides HTTP handlers for inventory reporting endpoints.
package api

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/freightpilot/greenlight/internal/models"
)

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	// deletedSummary matches the exchange's deleted-cargo summary sentence,
	// e.g. "3 marfuri sterse in ultimele 24 ore".
	deletedSummary = regexp.MustCompile(`(?i)\b\d+\s+marfuri\s+sterse?\s+in\s+ultimele\s+\d+\s+ore\b`)
)

// activeProductsHandler replaces a user's stored inventory with the rows
// scraped from the active-products page (POST /api/active-products/).
func (s *Server) activeProductsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.activeProductsHandler: processing report", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r, "activeProductsHandler") {
		return
	}
	var req models.ActiveProductsRequest
	if !decodeJSON(w, r, "activeProductsHandler", &req) {
		return
	}

	user := strings.TrimSpace(req.UserName)
	if user == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user_name"))
		return
	}

	ownRows := ownedRows(req.Rows, user)
	incomingIDs := dedupeKeepOrder(rowIDs(ownRows))
	slog.Info("Server.activeProductsHandler: page snapshot",
		"user", user, "headerCount", req.ActiveProducts, "ownRows", len(ownRows), "receivedRows", len(req.Rows))

	existing, err := s.inv.GetCargoDoc(user)
	if err != nil {
		slog.Error("Server.activeProductsHandler: inventory read failed", "error", err, "user", user)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Inventory store error"))
		return
	}

	added, removed, kept := diffIDs(existing.IDs, incomingIDs)
	slog.Info("Server.activeProductsHandler: replacing inventory",
		"user", user, "previous", len(existing.IDs), "incoming", len(incomingIDs),
		"added", len(added), "removed", len(removed), "kept", len(kept))

	rowByID := make(map[string]models.ProductRow, len(ownRows))
	for _, row := range ownRows {
		if _, ok := rowByID[row.ID]; !ok {
			rowByID[row.ID] = row
		}
	}

	meta := make([]models.CargoMeta, 0, len(incomingIDs))
	items := make([]models.CargoItem, 0, len(incomingIDs))
	for _, id := range incomingIDs {
		row := rowByID[id]
		meta = append(meta, models.CargoMeta{ID: id, StartDate: row.StartDate, ForDays: row.ForDays})
		owner := row.Owner
		if owner == "" {
			owner = user
		}
		items = append(items, models.CargoItem{ID: id, Owner: owner, StartDate: row.StartDate, ForDays: row.ForDays})
	}

	if err := s.inv.ReplaceIDs(user, incomingIDs, meta); err != nil {
		slog.Error("Server.activeProductsHandler: inventory write failed", "error", err, "user", user)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Inventory store error"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.ActiveProductsResponse{
		OK:           true,
		Mode:         "replace_all",
		ReceivedRows: len(req.Rows),
		OwnRows:      len(ownRows),
		UserName:     user,
		IDsNow:       incomingIDs,
		IDsMeta:      meta,
		Items:        items,
		Diff:         models.IDsDiff{Added: added, Removed: removed, Kept: kept},
	})
}

// deletedProductsHandler echoes the deleted-products page report
// (POST /api/deleted-products/). Nothing is stored; the summary sentence is
// extracted for the logs.
func (s *Server) deletedProductsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.deletedProductsHandler: processing report", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r, "deletedProductsHandler") {
		return
	}
	var req models.DeletedProductsRequest
	if !decodeJSON(w, r, "deletedProductsHandler", &req) {
		return
	}

	user := strings.TrimSpace(req.UserName)
	if user == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user_name"))
		return
	}

	compact := strings.TrimSpace(whitespaceRuns.ReplaceAllString(req.SummaryText, " "))
	summary := compact
	if m := deletedSummary.FindString(compact); m != "" {
		summary = m
	}

	ownRows := ownedRows(req.Rows, user)
	slog.Info("Server.deletedProductsHandler: deleted page snapshot",
		"user", user, "summary", summary, "ownRows", len(ownRows), "receivedRows", len(req.Rows))

	writeJSONResponse(w, http.StatusOK, models.DeletedProductsResponse{
		OK:           true,
		UserName:     user,
		SummaryText:  summary,
		OwnRows:      len(ownRows),
		ReceivedRows: len(req.Rows),
	})
}

// userIDsHandler returns a user's stored inventory (GET /api/cargo/ids).
func (s *Server) userIDsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user"))
		return
	}

	doc, err := s.inv.GetCargoDoc(user)
	if err != nil {
		slog.Error("Server.userIDsHandler: inventory read failed", "error", err, "user", user)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Inventory store error"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.UserIDsResponse{
		User:    user,
		IDs:     emptyIfNil(doc.IDs),
		IDsMeta: doc.IDsMeta,
	})
}

// cargoMetaHandler returns metadata for one cargo id (GET /api/cargo/meta).
func (s *Server) cargoMetaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if user == "" || id == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user or id"))
		return
	}

	doc, err := s.inv.GetCargoDoc(user)
	if err != nil {
		slog.Error("Server.cargoMetaHandler: inventory read failed", "error", err, "user", user)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Inventory store error"))
		return
	}
	writeJSONResponse(w, http.StatusOK, doc.MetaFor(id))
}

// ownedRows filters page rows down to those owned by the reporting user and
// carrying a cargo id.
func ownedRows(rows []models.ProductRow, user string) []models.ProductRow {
	var out []models.ProductRow
	for _, row := range rows {
		if strings.TrimSpace(row.ID) == "" {
			continue
		}
		if strings.TrimSpace(row.Owner) != user {
			continue
		}
		row.ID = strings.TrimSpace(row.ID)
		row.Owner = strings.TrimSpace(row.Owner)
		out = append(out, row)
	}
	return out
}

func rowIDs(rows []models.ProductRow) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// dedupeKeepOrder removes duplicates and empty entries, preserving first-seen order.
func dedupeKeepOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, x := range items {
		if x == "" {
			continue
		}
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}

// diffIDs classifies the incoming id set against the stored one.
func diffIDs(existing, incoming []string) (added, removed, kept []string) {
	existingSet := make(map[string]struct{}, len(existing))
	for _, x := range existing {
		existingSet[x] = struct{}{}
	}
	incomingSet := make(map[string]struct{}, len(incoming))
	for _, x := range incoming {
		incomingSet[x] = struct{}{}
	}
	added = make([]string, 0)
	removed = make([]string, 0)
	kept = make([]string, 0)
	for _, x := range incoming {
		if _, ok := existingSet[x]; ok {
			kept = append(kept, x)
		} else {
			added = append(added, x)
		}
	}
	for _, x := range existing {
		if _, ok := incomingSet[x]; !ok {
			removed = append(removed, x)
		}
	}
	return added, removed, kept
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
