package storefront

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-storefront/internal/auth"
	"ms-storefront/internal/checkout"
	"ms-storefront/internal/models"
)

// actor names the admin behind a request for audit lines.
func actor(r *http.Request) string {
	if id := auth.UserID(r.Context()); id != "" {
		return id
	}
	return "unauthenticated"
}

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.catalogFor(r).ListUsers(r.Context())
	if err != nil {
		h.catalogError(w, "ListUsers", err)
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("Users retrieved", users))
}

func (h *Handler) AdminListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.catalogFor(r).ListEvents(r.Context())
	if err != nil {
		h.catalogError(w, "ListEvents", err)
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("Events retrieved", events))
}

func (h *Handler) AdminCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if fields := checkout.Validate(req); fields != nil {
		h.validationError(w, fields)
		return
	}

	resp, err := h.catalogFor(r).CreateEvent(r.Context(), req)
	if err != nil {
		h.catalogError(w, "CreateEvent", err)
		return
	}
	h.Logger.Info("ADMIN", fmt.Sprintf("Event %q created by %s", req.Name, actor(r)))
	writeJSON(w, h.Logger, http.StatusCreated, SuccessResponse(resp.Message, nil))
}

func (h *Handler) AdminCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if fields := checkout.Validate(req); fields != nil {
		h.validationError(w, fields)
		return
	}

	resp, err := h.catalogFor(r).CreateTicket(r.Context(), req)
	if err != nil {
		h.catalogError(w, "CreateTicket", err)
		return
	}
	h.Logger.Info("ADMIN", fmt.Sprintf("Ticket %q for event %d created by %s", req.Name, req.EventID, actor(r)))
	writeJSON(w, h.Logger, http.StatusCreated, SuccessResponse(resp.Message, nil))
}
