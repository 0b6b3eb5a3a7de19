package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mpaulsen/keepup/internal/handler"
	"github.com/mpaulsen/keepup/internal/middleware"
	"github.com/mpaulsen/keepup/internal/schedule"
	"github.com/mpaulsen/keepup/internal/store"
	"github.com/mpaulsen/keepup/internal/timeutil"
)

type Server struct {
	scheduleH *handler.ScheduleHandler
	attendeeH *handler.AttendeeHandler
	logger    *slog.Logger
}

func New(view *schedule.View, attendees *store.AttendeeStore, norm *timeutil.Normalizer, staleLimit int, logger *slog.Logger) *Server {
	return &Server{
		scheduleH: handler.NewScheduleHandler(view, attendees, norm, staleLimit, logger.With("component", "schedule")),
		attendeeH: handler.NewAttendeeHandler(attendees, staleLimit, logger.With("component", "attendee")),
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.scheduleH.DayPage)
	mux.HandleFunc("GET /ignore_attendee", s.attendeeH.MarkIgnored)

	mux.HandleFunc("GET /api/schedule", s.scheduleH.Day)
	mux.HandleFunc("GET /api/attendees", s.attendeeH.List)
	mux.HandleFunc("GET /api/attendees/stale", s.attendeeH.Stale)

	mux.HandleFunc("GET /health", s.healthHandler)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
