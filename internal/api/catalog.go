package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"example.com/wellness/internal/calc"
	"example.com/wellness/internal/domain"
)

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (h *Handler) searchGyms(w http.ResponseWriter, r *http.Request, _ string) {
	q, err := parseGymQuery(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	gyms, err := h.svc.Catalog.SearchGyms(r.Context(), q)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(gyms, nil))
}

func parseGymQuery(r *http.Request) (domain.GymQuery, error) {
	values := r.URL.Query()
	q := domain.GymQuery{
		Text:      strings.TrimSpace(values.Get("q")),
		Amenities: splitList(values.Get("amenities")),
	}

	lat, err := queryFloat(r, "lat")
	if err != nil {
		return q, err
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		return q, err
	}
	if (lat == nil) != (lng == nil) {
		return q, fmt.Errorf("%w: lat and lng must be given together", domain.ErrValidation)
	}
	if lat != nil {
		origin := calc.LatLng{Lat: *lat, Lng: *lng}
		q.Origin = &origin
	}

	if radius, err := queryFloat(r, "radius_km"); err != nil {
		return q, err
	} else if radius != nil {
		q.RadiusKm = *radius
	}
	if rating, err := queryFloat(r, "min_rating"); err != nil {
		return q, err
	} else if rating != nil {
		q.MinRating = *rating
	}
	if values.Has("open_at") {
		hour, err := queryInt(r, "open_at")
		if err != nil {
			return q, err
		}
		q.OpenAt = &hour
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}
	return q, nil
}

func (h *Handler) getGym(w http.ResponseWriter, r *http.Request, _ string) {
	gym, err := h.svc.Catalog.GetGym(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gym)
}

func (h *Handler) listTrainers(w http.ResponseWriter, r *http.Request, _ string) {
	values := r.URL.Query()
	filter := domain.TrainerFilter{
		GymID:     strings.TrimSpace(values.Get("gym_id")),
		Specialty: strings.TrimSpace(values.Get("specialty")),
	}
	rating, err := queryFloat(r, "min_rating")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if rating != nil {
		filter.MinRating = *rating
	}
	if raw := strings.TrimSpace(values.Get("max_rate")); raw != "" {
		maxRate, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "max_rate must be a decimal")
			return
		}
		filter.MaxRate = &maxRate
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	trainers, err := h.svc.Catalog.ListTrainers(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(trainers, nil))
}

func (h *Handler) getTrainer(w http.ResponseWriter, r *http.Request, _ string) {
	trainer, err := h.svc.Catalog.GetTrainer(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trainer)
}
