package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fieldbook/fieldbook/infrastructure/http/response"
	"github.com/fieldbook/fieldbook/internal/domain"
	"github.com/fieldbook/fieldbook/internal/usecase"
	apperror "github.com/fieldbook/fieldbook/pkg/error"
)

// ReservationUseCase defines the behavior the handler depends on.
type ReservationUseCase interface {
	Create(ctx context.Context, req usecase.CreateReservationRequest) (*domain.Reservation, error)
	Update(ctx context.Context, req usecase.UpdateReservationRequest) (*domain.Reservation, error)
	Delete(ctx context.Context, id int64) error
	ListByDate(ctx context.Context, date string) ([]*domain.Reservation, error)
	ListByWeek(ctx context.Context, startDate string) ([]*domain.Reservation, error)
	ListAudit(ctx context.Context) ([]*domain.AuditEntry, error)
}

// ReservationHandler handles HTTP requests for reservations and the audit log
type ReservationHandler struct {
	reservationUseCase ReservationUseCase
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationUseCase ReservationUseCase) *ReservationHandler {
	return &ReservationHandler{
		reservationUseCase: reservationUseCase,
	}
}

// RegisterRoutes registers reservation routes
func (h *ReservationHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// /week must be registered before /{id}
	api.HandleFunc("/reservations/week", h.ListByWeek).Methods("GET")
	api.HandleFunc("/reservations", h.ListByDate).Methods("GET")
	api.HandleFunc("/reservations", h.Create).Methods("POST")
	api.HandleFunc("/reservations/{id}", h.Update).Methods("PUT")
	api.HandleFunc("/reservations/{id}", h.Delete).Methods("DELETE")

	api.HandleFunc("/audit", h.ListAudit).Methods("GET")
}

// Create handles reservation creation
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.AppError(w, apperror.NewBadRequest("invalid request body"))
		return
	}

	reservation, err := h.reservationUseCase.Create(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, http.StatusCreated, "Reservation created successfully", reservation)
}

// Update handles replacing an existing reservation
func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req usecase.UpdateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.AppError(w, apperror.NewBadRequest("invalid request body"))
		return
	}
	req.ID = id

	reservation, err := h.reservationUseCase.Update(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Reservation updated successfully", reservation)
}

// Delete handles reservation removal; unknown ids still succeed
func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.reservationUseCase.Delete(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Reservation deleted successfully", nil)
}

// ListByDate handles GET /reservations?date=YYYY-MM-DD
func (h *ReservationHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.reservationUseCase.ListByDate(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Reservations retrieved successfully", reservations)
}

// ListByWeek handles GET /reservations/week?start=YYYY-MM-DD
func (h *ReservationHandler) ListByWeek(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.reservationUseCase.ListByWeek(r.Context(), r.URL.Query().Get("start"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Reservations retrieved successfully", reservations)
}

// ListAudit handles GET /audit
func (h *ReservationHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.reservationUseCase.ListAudit(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Audit log retrieved successfully", entries)
}

func (h *ReservationHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		response.AppError(w, apperror.NewBadRequest("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *ReservationHandler) handleError(w http.ResponseWriter, err error) {
	response.AppError(w, apperror.MapError(err))
}
