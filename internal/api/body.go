package api

import (
	"net/http"
	"time"

	"example.com/wellness/internal/domain"
)

// RecordBodyStatsRequest is the payload for POST /v1/body-stats.
type RecordBodyStatsRequest struct {
	WeightKg   float64   `json:"weight_kg"`
	HeightCm   float64   `json:"height_cm"`
	BodyFatPct *float64  `json:"body_fat_pct"`
	RecordedAt time.Time `json:"recorded_at"`
}

// UpdateProfileRequest is the partial payload for PUT /v1/profile.
type UpdateProfileRequest struct {
	DisplayName *string         `json:"display_name"`
	Goal        *domain.Goal    `json:"goal"`
	Targets     *domain.Targets `json:"targets"`
}

func (h *Handler) recordBodyStats(w http.ResponseWriter, r *http.Request, userID string) {
	var req RecordBodyStatsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	stats, err := h.svc.BodyStats.RecordBodyStats(r.Context(), domain.RecordBodyStatsInput{
		UserID:     userID,
		WeightKg:   req.WeightKg,
		HeightCm:   req.HeightCm,
		BodyFatPct: req.BodyFatPct,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stats)
}

func (h *Handler) listBodyStats(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	stats, err := h.svc.BodyStats.ListBodyStats(r.Context(), userID, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(stats, nil))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := h.svc.Profiles.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, userID string) {
	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := h.svc.Profiles.UpdateProfile(r.Context(), userID, domain.UpdateProfileInput{
		DisplayName: req.DisplayName,
		Goal:        req.Goal,
		Targets:     req.Targets,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
