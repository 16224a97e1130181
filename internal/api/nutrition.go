package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/wellness/internal/domain"
)

// maxPhotoBytes caps uploads; the domain applies its own limit to the decoded photo.
const maxPhotoBytes = 8 << 20

// LogMealRequest is the payload for POST /v1/meals.
type LogMealRequest struct {
	Name     string            `json:"name"`
	MealType domain.MealType   `json:"meal_type"`
	EatenAt  time.Time         `json:"eaten_at"`
	Items    []domain.MealItem `json:"items"`
	PhotoURL string            `json:"photo_url"`
}

func (h *Handler) logMeal(w http.ResponseWriter, r *http.Request, userID string) {
	var req LogMealRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	meal, replay, err := h.svc.Meals.LogMeal(r.Context(), domain.LogMealInput{
		UserID:         userID,
		Name:           req.Name,
		MealType:       req.MealType,
		EatenAt:        req.EatenAt,
		Items:          req.Items,
		PhotoURL:       strings.TrimSpace(req.PhotoURL),
		Source:         domain.SourceManual,
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeCreated(w, replay, MealResponse{Meal: *meal, Replay: replay})
}

func (h *Handler) listMeals(w http.ResponseWriter, r *http.Request, userID string) {
	day, err := queryDay(r, h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	meals, err := h.svc.Meals.ListMeals(r.Context(), userID, day)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(meals, nil))
}

func (h *Handler) deleteMeal(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.svc.Meals.DeleteMeal(r.Context(), userID, r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recognizeMeal accepts multipart/form-data with a "photo" file and optional
// "meal_type", "eaten_at" (RFC 3339) and "log" fields.
func (h *Handler) recognizeMeal(w http.ResponseWriter, r *http.Request, userID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+(1<<20))
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "expected multipart form with a photo: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "photo is required")
		return
	}
	defer file.Close()
	image, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read photo")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image)
	}

	in := domain.RecognizeInput{
		UserID:         userID,
		Image:          image,
		MimeType:       mimeType,
		MealType:       domain.MealType(strings.TrimSpace(r.FormValue("meal_type"))),
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	}
	if raw := strings.TrimSpace(r.FormValue("log")); raw != "" {
		if in.Log, err = strconv.ParseBool(raw); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "log must be a boolean")
			return
		}
	}
	if raw := strings.TrimSpace(r.FormValue("eaten_at")); raw != "" {
		if in.EatenAt, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "eaten_at must be RFC 3339")
			return
		}
	}

	result, err := h.svc.Nutrition.RecognizeMeal(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Meal != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (h *Handler) lookupFood(w http.ResponseWriter, r *http.Request, _ string) {
	food, err := h.svc.Nutrition.LookupFood(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, food)
}

func (h *Handler) dailySummary(w http.ResponseWriter, r *http.Request, userID string) {
	day, err := queryDay(r, h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	summary, err := h.svc.Nutrition.DailySummary(r.Context(), userID, day)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
