package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"papercrumpler/internal/constants"
	"papercrumpler/internal/journal"
	"papercrumpler/internal/metrics"
	"papercrumpler/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// JournalReader lists recorded print outcomes
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	ForItem(ctx context.Context, itemID string) ([]journal.Entry, error)
}

type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	journal JournalReader
	server  *http.Server
}

// NewServer builds the admin server. journal may be nil when the print
// journal is disabled.
func NewServer(journal JournalReader, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		journal: journal,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/journal", s.handleJournal()).Methods(http.MethodGet)
	s.router.HandleFunc("/journal/{id}", s.handleJournalItem()).Methods(http.MethodGet)
}

func (s *Server) Start(port int) error {
	if port == 0 {
		port = constants.DefaultServerPort
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Admin server listening on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeNoCacheJSON(w, http.StatusOK, metrics.GetAllMetrics(), s.logger)
	}
}

func (s *Server) handleJournal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.journal == nil {
			http.Error(w, "print journal disabled", http.StatusNotFound)
			return
		}

		limit := constants.DefaultJournalPageSize
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, constants.MaxJournalPageSize)
		}

		entries, err := s.journal.Recent(r.Context(), limit)
		if err != nil {
			s.logger.WithError(err).Error("Failed to read print journal")
			http.Error(w, "failed to read print journal", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}
		writeNoCacheJSON(w, http.StatusOK, entries, s.logger)
	}
}

func (s *Server) handleJournalItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.journal == nil {
			http.Error(w, "print journal disabled", http.StatusNotFound)
			return
		}

		itemID := mux.Vars(r)["id"]
		entries, err := s.journal.ForItem(r.Context(), itemID)
		if err != nil {
			s.logger.WithError(err).WithField("item_id", itemID).Error("Failed to read print journal")
			http.Error(w, "failed to read print journal", http.StatusInternalServerError)
			return
		}
		if len(entries) == 0 {
			http.Error(w, "no journal entries for item", http.StatusNotFound)
			return
		}
		writeNoCacheJSON(w, http.StatusOK, entries, s.logger)
	}
}

func writeNoCacheJSON(w http.ResponseWriter, status int, v any, logger *logrus.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}
