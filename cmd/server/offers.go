package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/leaseworks/internal/quoting"
)

func (s *server) handleOffersList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	offers, err := s.svc.ListOffers(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *server) handleOfferGet(w http.ResponseWriter, r *http.Request) {
	offer, err := s.svc.Offer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *server) handleOfferCreate(w http.ResponseWriter, r *http.Request) {
	var in quoting.OfferInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	offer, err := s.svc.CreateOffer(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}
