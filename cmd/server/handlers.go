package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/costnorms/internal/costing"
	"github.com/Simplici0/costnorms/internal/technology"
	"github.com/Simplici0/costnorms/internal/timing"
)

type server struct {
	store      *technology.Store
	estimator  *timing.Estimator
	calculator *costing.Calculator
}

type costRequest struct {
	Mode       string              `json:"mode"`
	IncludeTPZ bool                `json:"includeTPZ"`
	Quantity   decimal.NullDecimal `json:"quantity"`
}

type technologyListItem struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name"`
}

type timeResponse struct {
	TechnologyID    int64           `json:"technologyId"`
	Quantity        decimal.Decimal `json:"quantity"`
	IncludeTPZ      bool            `json:"includeTPZ"`
	RealizationTime int             `json:"realizationTime"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/technologies", s.handleTechnologiesList)
	r.Post("/technologies/{id}/costs", s.handleTechnologyCosts)
	r.Get("/technologies/{id}/time", s.handleTechnologyTime)
	r.Post("/orders/{id}/costs", s.handleOrderCosts)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleTechnologiesList(w http.ResponseWriter, r *http.Request) {
	technologies, err := s.store.ListTechnologies(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]technologyListItem, 0, len(technologies))
	for _, t := range technologies {
		items = append(items, technologyListItem{ID: t.ID, Number: t.Number, Name: t.Name})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *server) handleTechnologyCosts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	req, err := decodeCostRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tech, err := s.store.LoadTechnology(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.calculate(w, r, tech, req, req.Quantity)
}

func (s *server) handleOrderCosts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	req, err := decodeCostRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	order, err := s.store.LoadOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	quantity := req.Quantity
	if !quantity.Valid {
		quantity = order.PlannedQuantity
	}
	s.calculate(w, r, order, req, quantity)
}

func (s *server) calculate(w http.ResponseWriter, r *http.Request, source technology.Source, req costRequest, quantity decimal.NullDecimal) {
	mode, err := costing.ParseMode(req.Mode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.calculator.Calculate(r.Context(), costing.Request{
		Source:     source,
		Mode:       mode,
		IncludeTPZ: req.IncludeTPZ,
		Quantity:   quantity,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result.Map())
}

func (s *server) handleTechnologyTime(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	quantity, err := decimal.NewFromString(r.URL.Query().Get("quantity"))
	if err != nil || !quantity.IsPositive() {
		http.Error(w, "quantity must be greater than 0", http.StatusBadRequest)
		return
	}
	includeTPZ := false
	if raw := r.URL.Query().Get("includeTPZ"); raw != "" {
		includeTPZ, err = strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "includeTPZ must be a boolean", http.StatusBadRequest)
			return
		}
	}

	tech, err := s.store.LoadTechnology(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tech.Root == nil {
		writeError(w, r, costing.ErrInvalidArgument)
		return
	}

	seconds, err := s.estimator.EstimateRealizationTime(r.Context(), tech.Root, quantity, includeTPZ)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, timeResponse{
		TechnologyID:    id,
		Quantity:        quantity,
		IncludeTPZ:      includeTPZ,
		RealizationTime: seconds,
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeCostRequest(r *http.Request) (costRequest, error) {
	var req costRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, errors.Join(costing.ErrInvalidArgument, err)
	}
	req.Mode = strings.TrimSpace(req.Mode)
	return req, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, technology.ErrNotFound) && !errors.Is(err, costing.ErrUnresolvedReference):
		return http.StatusNotFound
	case errors.Is(err, costing.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, costing.ErrUnresolvedReference), errors.Is(err, costing.ErrCyclicReference), errors.Is(err, costing.ErrDepthExceeded), errors.Is(err, timing.ErrTimeOverflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
