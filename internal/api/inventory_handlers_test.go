package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/freightpilot/greenlight/internal/greenlight"
	"github.com/freightpilot/greenlight/internal/models"
)

func intPtr(v int) *int { return &v }

func TestActiveProductsReplacesInventory(t *testing.T) {
	srv, _, inv := newTestServer()
	h := srv.Handler()

	// Seed a previous snapshot so the diff has something to remove.
	if err := inv.ReplaceIDs("alice", []string{"BM-OLD-1", "BM-X-12345"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := postJSON(t, h, "/api/active-products/", models.ActiveProductsRequest{
		UserName:       "alice",
		ActiveProducts: 2,
		Rows: []models.ProductRow{
			{ID: "BM-X-12345", Owner: "alice", StartDate: "2026-03-01", ForDays: intPtr(7)},
			{ID: "BM-NEW-9", Owner: "alice", ForDays: intPtr(3)},
			{ID: "BM-X-12345", Owner: "alice"}, // duplicate row, first wins
			{ID: "BM-OTHER-1", Owner: "someone else"},
			{ID: "", Owner: "alice"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.ActiveProductsResponse
	decodeBody(t, rec, &resp)
	if !resp.OK || resp.Mode != "replace_all" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if resp.ReceivedRows != 5 || resp.OwnRows != 3 {
		t.Errorf("expected 5 received / 3 own rows, got %d / %d", resp.ReceivedRows, resp.OwnRows)
	}
	if len(resp.IDsNow) != 2 || resp.IDsNow[0] != "BM-X-12345" || resp.IDsNow[1] != "BM-NEW-9" {
		t.Errorf("ids should be deduped in page order, got %v", resp.IDsNow)
	}
	if len(resp.Diff.Added) != 1 || resp.Diff.Added[0] != "BM-NEW-9" {
		t.Errorf("unexpected added: %v", resp.Diff.Added)
	}
	if len(resp.Diff.Removed) != 1 || resp.Diff.Removed[0] != "BM-OLD-1" {
		t.Errorf("unexpected removed: %v", resp.Diff.Removed)
	}
	if len(resp.Diff.Kept) != 1 || resp.Diff.Kept[0] != "BM-X-12345" {
		t.Errorf("unexpected kept: %v", resp.Diff.Kept)
	}

	// The store now holds the replacement snapshot with metadata.
	doc, err := inv.GetCargoDoc("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.IDs) != 2 {
		t.Fatalf("expected 2 stored ids, got %v", doc.IDs)
	}
	m := doc.MetaFor("BM-X-12345")
	if m.StartDate != "2026-03-01" || m.ForDays == nil || *m.ForDays != 7 {
		t.Errorf("metadata not stored from the first duplicate row: %+v", m)
	}
}

func TestActiveProductsValidation(t *testing.T) {
	srv, _, _ := newTestServer()
	h := srv.Handler()

	rec := postJSON(t, h, "/api/active-products/", models.ActiveProductsRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user_name should be 400, got %d", rec.Code)
	}
}

// failingInventory fails every call, standing in for an unreachable backend.
type failingInventory struct{}

func (failingInventory) GetCargoDoc(string) (models.CargoDoc, error) {
	return models.CargoDoc{}, errors.New("backend unavailable")
}
func (failingInventory) ReplaceIDs(string, []string, []models.CargoMeta) error {
	return errors.New("backend unavailable")
}
func (failingInventory) Close() error { return nil }

func TestActiveProductsStoreError(t *testing.T) {
	srv := NewServer(greenlight.NewInMemoryStateStore(), failingInventory{})
	h := srv.Handler()

	rec := postJSON(t, h, "/api/active-products/", models.ActiveProductsRequest{
		UserName: "alice",
		Rows:     []models.ProductRow{{ID: "BM-1-1", Owner: "alice"}},
	})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("store failure should be 502, got %d", rec.Code)
	}
}

func TestDeletedProductsSummaryExtraction(t *testing.T) {
	srv, _, _ := newTestServer()
	h := srv.Handler()

	rec := postJSON(t, h, "/api/deleted-products/", models.DeletedProductsRequest{
		UserName:    "alice",
		SummaryText: "  Atentie!\n 3   marfuri sterse in ultimele   24 ore (detalii) ",
		Rows: []models.ProductRow{
			{ID: "BM-1-1", Owner: "alice"},
			{ID: "BM-2-2", Owner: "someone else"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.DeletedProductsResponse
	decodeBody(t, rec, &resp)
	if resp.SummaryText != "3 marfuri sterse in ultimele 24 ore" {
		t.Errorf("summary sentence not extracted, got %q", resp.SummaryText)
	}
	if resp.OwnRows != 1 || resp.ReceivedRows != 2 {
		t.Errorf("expected 1 own / 2 received, got %d / %d", resp.OwnRows, resp.ReceivedRows)
	}

	// Without a recognizable sentence the compacted text passes through.
	rec = postJSON(t, h, "/api/deleted-products/", models.DeletedProductsRequest{
		UserName:    "alice",
		SummaryText: "  nothing   deleted  here ",
	})
	decodeBody(t, rec, &resp)
	if resp.SummaryText != "nothing deleted here" {
		t.Errorf("expected compacted passthrough, got %q", resp.SummaryText)
	}
}

func TestUserIDsEndpoint(t *testing.T) {
	srv, _, inv := newTestServer()
	h := srv.Handler()

	if err := inv.ReplaceIDs("alice", []string{"BM-X-12345"}, []models.CargoMeta{
		{ID: "BM-X-12345", StartDate: "2026-03-01", ForDays: intPtr(7)},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cargo/ids?user=alice", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.UserIDsResponse
	decodeBody(t, rec, &resp)
	if resp.User != "alice" || len(resp.IDs) != 1 || resp.IDs[0] != "BM-X-12345" {
		t.Errorf("unexpected response: %+v", resp)
	}

	// Unknown users get an empty list, not null.
	req = httptest.NewRequest(http.MethodGet, "/api/cargo/ids?user=bob", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var empty models.UserIDsResponse
	decodeBody(t, rec, &empty)
	if empty.IDs == nil || len(empty.IDs) != 0 {
		t.Errorf("expected empty ids array, got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/cargo/ids", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user should be 400, got %d", rec.Code)
	}
}

func TestCargoMetaEndpoint(t *testing.T) {
	srv, _, inv := newTestServer()
	h := srv.Handler()

	if err := inv.ReplaceIDs("alice", []string{"BM-X-12345"}, []models.CargoMeta{
		{ID: "BM-X-12345", StartDate: "2026-03-01", ForDays: intPtr(7)},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Lookup by the raw id resolves through the digit suffix.
	req := httptest.NewRequest(http.MethodGet, "/api/cargo/meta?user=alice&id=12345", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var meta models.CargoMeta
	decodeBody(t, rec, &meta)
	if meta.ID != "BM-X-12345" || meta.ForDays == nil || *meta.ForDays != 7 {
		t.Errorf("unexpected meta: %+v", meta)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/cargo/meta?user=alice", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing id should be 400, got %d", rec.Code)
	}
}

func TestDiffIDs(t *testing.T) {
	added, removed, kept := diffIDs(
		[]string{"a", "b", "c"},
		[]string{"b", "c", "d"},
	)
	if len(added) != 1 || added[0] != "d" {
		t.Errorf("unexpected added: %v", added)
	}
	if len(removed) != 1 || removed[0] != "a" {
		t.Errorf("unexpected removed: %v", removed)
	}
	if len(kept) != 2 || kept[0] != "b" || kept[1] != "c" {
		t.Errorf("unexpected kept: %v", kept)
	}

	added, removed, kept = diffIDs(nil, nil)
	if len(added) != 0 || len(removed) != 0 || len(kept) != 0 {
		t.Errorf("empty diff should produce empty slices, got %v %v %v", added, removed, kept)
	}
}

func TestDedupeKeepOrder(t *testing.T) {
	got := dedupeKeepOrder([]string{"b", "a", "b", "", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}
