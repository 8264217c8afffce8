package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/scheme"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"), 100)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPresetsListIncludesBuiltins(t *testing.T) {
	h := NewPresetsHandler(newTestDB(t), testLogger())

	rec := httptest.NewRecorder()
	h.ServeCollection(rec, httptest.NewRequest(http.MethodGet, "/api/presets", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var presets []PresetResponse
	if err := json.NewDecoder(rec.Body).Decode(&presets); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(presets) != len(scheme.BuiltinPresets) {
		t.Errorf("expected %d builtins, got %d", len(scheme.BuiltinPresets), len(presets))
	}
}

func TestPresetsListSortedByName(t *testing.T) {
	db := newTestDB(t)
	h := NewPresetsHandler(db, testLogger())

	if err := db.SavePreset(&models.Preset{Name: "zz-mine", Scheme: "{n}"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SavePreset(&models.Preset{Name: "aa-mine", Scheme: "{n}"}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeCollection(rec, httptest.NewRequest(http.MethodGet, "/api/presets", nil))

		var presets []PresetResponse
		if err := json.NewDecoder(rec.Body).Decode(&presets); err != nil {
			t.Fatalf("bad response: %v", err)
		}
		if !sort.SliceIsSorted(presets, func(a, b int) bool { return presets[a].Name < presets[b].Name }) {
			t.Fatalf("listing must be sorted by name, got %+v", presets)
		}
	}
}

func TestPresetsPutShadowsBuiltin(t *testing.T) {
	h := NewPresetsHandler(newTestDB(t), testLogger())

	body := strings.NewReader(`{"scheme":"{n} - custom"}`)
	rec := httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodPut, "/api/presets/Simple", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("put failed with %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodGet, "/api/presets/Simple", nil))
	var preset PresetResponse
	if err := json.NewDecoder(rec.Body).Decode(&preset); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if preset.Scheme != "{n} - custom" || preset.Builtin {
		t.Errorf("stored preset must shadow the builtin, got %+v", preset)
	}
}

func TestPresetsDelete(t *testing.T) {
	db := newTestDB(t)
	h := NewPresetsHandler(db, testLogger())

	if err := db.SavePreset(&models.Preset{Name: "mine", Scheme: "{n}"}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodDelete, "/api/presets/mine", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodDelete, "/api/presets/mine", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestPresetsGetUnknown(t *testing.T) {
	h := NewPresetsHandler(newTestDB(t), testLogger())

	rec := httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodGet, "/api/presets/does-not-exist", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestPresetsPutRequiresScheme(t *testing.T) {
	h := NewPresetsHandler(newTestDB(t), testLogger())

	rec := httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodPut, "/api/presets/mine", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
