package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mpaulsen/keepup/internal/model"
	"github.com/mpaulsen/keepup/internal/store"
)

// AttendeeHandler exposes the attendee ledger over HTTP: listing, stale
// ranking, and flagging contacts to drop from stale reports.
type AttendeeHandler struct {
	attendees  *store.AttendeeStore
	staleLimit int
	logger     *slog.Logger
}

func NewAttendeeHandler(attendees *store.AttendeeStore, staleLimit int, logger *slog.Logger) *AttendeeHandler {
	return &AttendeeHandler{attendees: attendees, staleLimit: staleLimit, logger: logger}
}

func (h *AttendeeHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.attendees.All()
	if err != nil {
		h.logger.Error("list attendees", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list attendees"})
		return
	}
	if records == nil {
		records = []model.AttendeeRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *AttendeeHandler) Stale(w http.ResponseWriter, r *http.Request) {
	records, err := h.attendees.RankStale(true, h.staleLimit)
	if err != nil {
		h.logger.Error("rank stale attendees", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to rank attendees"})
		return
	}
	if records == nil {
		records = []model.AttendeeRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// MarkIgnored flags an attendee so stale reports skip them, then bounces
// back to the schedule page. Linked from the stale contact table, so it
// accepts GET.
func (h *AttendeeHandler) MarkIgnored(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	if err := h.attendees.MarkOkToIgnore(email); err != nil {
		h.logger.Error("mark attendee ignored", "email", email, "error", err)
		http.Error(w, "failed to update attendee", http.StatusNotFound)
		return
	}
	h.logger.Info("attendee marked ok to ignore", "email", email)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
