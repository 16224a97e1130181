package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/persistence"
)

// CreateBookingRequest is the payload for POST /v1/bookings.
type CreateBookingRequest struct {
	TrainerID   string    `json:"trainer_id"`
	StartsAt    time.Time `json:"starts_at"`
	DurationMin int       `json:"duration_min"`
	Notes       string    `json:"notes"`
}

// CancelBookingRequest is the optional payload for POST /v1/bookings/{id}/cancel.
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// TopUpRequest is the payload for POST /v1/wallet/topup.
type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request, userID string) {
	var req CreateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	booking, replay, err := h.svc.Bookings.CreateBooking(r.Context(), domain.CreateBookingInput{
		UserID:         userID,
		TrainerID:      strings.TrimSpace(req.TrainerID),
		StartsAt:       req.StartsAt,
		DurationMin:    req.DurationMin,
		Notes:          strings.TrimSpace(req.Notes),
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeCreated(w, replay, BookingResponse{Booking: *booking, Replay: replay})
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request, userID string) {
	cursor, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	status := domain.BookingStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	items, next, err := h.svc.Bookings.ListBookings(r.Context(), userID, status, cursor, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(items, next))
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request, userID string) {
	booking, err := h.svc.Bookings.GetBooking(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request, userID string) {
	var req CancelBookingRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	booking, err := h.svc.Bookings.CancelBooking(r.Context(), userID, r.PathValue("id"), req.Reason)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request, userID string) {
	wallet, err := h.svc.Wallet.GetWallet(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (h *Handler) topUp(w http.ResponseWriter, r *http.Request, userID string) {
	var req TopUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	txn, replay, err := h.svc.Wallet.TopUp(r.Context(), userID, req.Amount, r.Header.Get(HeaderIdempotencyKey))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeCreated(w, replay, TopUpResponse{Transaction: *txn, Replay: replay})
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	cursor, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	items, next, err := h.svc.Wallet.ListTransactions(r.Context(), userID, cursor, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(items, next))
}

// pageParams reads ?cursor= and ?limit=.
func pageParams(w http.ResponseWriter, r *http.Request) (*domain.Cursor, int, bool) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return nil, 0, false
	}
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return nil, 0, false
	}
	return cursor, limit, true
}
