package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"consultbooking/internal/entities"
	apperrors "consultbooking/internal/errors"
	"consultbooking/internal/service"
)

type BookingHandler struct {
	Availability *service.AvailabilityService
	Booking      *service.BookingService
}

func NewBookingHandler(availability *service.AvailabilityService, booking *service.BookingService) *BookingHandler {
	return &BookingHandler{Availability: availability, Booking: booking}
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceTypeID string `json:"service_type_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	entries, err := h.Availability.ComputeAvailability(r.Context(), req.ServiceTypeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"dates": entries})
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req entities.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	job, err := h.Booking.BookAppointment(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, job)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *apperrors.ValidationError
		notFoundErr   *apperrors.NotFoundError
		conflictErr   *apperrors.ConflictError
		externalErr   *apperrors.ExternalServiceError
	)
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Message, http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		http.Error(w, notFoundErr.Message, http.StatusNotFound)
	case errors.As(err, &conflictErr):
		http.Error(w, conflictErr.Message, http.StatusConflict)
	case errors.As(err, &externalErr):
		log.Printf("backend error: %v", err)
		http.Error(w, externalErr.Error(), http.StatusBadGateway)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
