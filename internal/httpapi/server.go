// Package httpapi exposes the contact resolver and the address book over a
// small JSON HTTP surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"rolo/internal/addrbook"
	"rolo/internal/resolver"
	"rolo/pkg/rolo"
)

// maxBodyBytes bounds request bodies, including harvested raw messages.
const maxBodyBytes = 1 << 20

// Server routes JSON requests to the resolver and the address-book store.
type Server struct {
	logger   *slog.Logger
	resolver *resolver.Cache
	store    *addrbook.Store
	mux      *http.ServeMux
}

// New creates the HTTP surface over the given resolver and store.
func New(contactResolver *resolver.Cache, store *addrbook.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	server := &Server{
		logger:   logger,
		resolver: contactResolver,
		store:    store,
		mux:      http.NewServeMux(),
	}

	server.mux.HandleFunc("GET /v1/contacts/resolve", server.handleResolve)
	server.mux.HandleFunc("GET /v1/cards", server.handleListCards)
	server.mux.HandleFunc("POST /v1/cards", server.handleCreateCard)
	server.mux.HandleFunc("POST /v1/cards/harvest", server.handleHarvest)
	server.mux.HandleFunc("GET /v1/cards/{id}", server.handleGetCard)
	server.mux.HandleFunc("PUT /v1/cards/{id}", server.handleUpdateCard)
	server.mux.HandleFunc("DELETE /v1/cards/{id}", server.handleDeleteCard)

	return server
}

// Handler returns the routable HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// handleResolve resolves one email to its contact record. Collaborator
// degradation is invisible here per the resolver's error policy; the only
// client error is a missing or empty email parameter.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	record, err := s.resolver.Resolve(r.Context(), email)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.store.ListCards(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	card, ok := s.decodeCard(w, r)
	if !ok {
		return
	}

	created, err := s.store.CreateCard(r.Context(), card)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.store.GetCard(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	card, ok := s.decodeCard(w, r)
	if !ok {
		return
	}
	card.ID = r.PathValue("id")

	updated, err := s.store.UpdateCard(r.Context(), card)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCard(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHarvest ingests one raw RFC 5322 message and creates cards for every
// previously unseen sender or recipient address.
func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	created, err := s.store.HarvestMessage(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, created)
}

// decodeCard reads a JSON card body, reporting a 400 on malformed input.
func (s *Server) decodeCard(w http.ResponseWriter, r *http.Request) (rolo.Card, bool) {
	var card rolo.Card
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&card); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("malformed card body: %v", err)})
		return rolo.Card{}, false
	}

	return card, true
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rolo.ErrInvalidEmail):
		status = http.StatusBadRequest
	case errors.Is(err, rolo.ErrCardNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.Any("error", err))
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", slog.Any("error", err))
	}
}
