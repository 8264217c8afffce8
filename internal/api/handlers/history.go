package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/renamer"
	"github.com/sirupsen/logrus"
)

// HistoryHandler handles rename history, undo and redo requests
type HistoryHandler struct {
	db      *models.Database
	renamer *renamer.Renamer
	logger  *logrus.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(db *models.Database, ren *renamer.Renamer, logger *logrus.Logger) *HistoryHandler {
	return &HistoryHandler{
		db:      db,
		renamer: ren,
		logger:  logger,
	}
}

// ServeHTTP handles the history listing endpoint
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.db.GetHistory(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load history")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// ServeUndo handles the undo endpoint
func (h *HistoryHandler) ServeUndo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entry, err := h.renamer.Undo()
	switch {
	case errors.Is(err, renamer.ErrNothingToUndo):
		http.Error(w, "Nothing to undo", http.StatusNotFound)
	case errors.Is(err, renamer.ErrHistoryDrifted):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		h.logger.WithError(err).Error("Undo failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entry)
	}
}

// ServeRedo handles the redo endpoint
func (h *HistoryHandler) ServeRedo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entry, err := h.renamer.Redo()
	switch {
	case errors.Is(err, renamer.ErrNothingToRedo):
		http.Error(w, "Nothing to redo", http.StatusNotFound)
	case errors.Is(err, renamer.ErrHistoryDrifted):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		h.logger.WithError(err).Error("Redo failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entry)
	}
}
