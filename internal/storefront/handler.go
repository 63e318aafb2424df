package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/auth"
	"ms-storefront/internal/cart"
	"ms-storefront/internal/catalog"
	"ms-storefront/internal/checkout"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/reconcile"
	"ms-storefront/internal/selector"
	"ms-storefront/internal/session"
	"ms-storefront/internal/storage"
)

// CartIDHeader lets each browser keep its own cart and session.
const CartIDHeader = "X-Cart-ID"

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type Handler struct {
	Catalog   *catalog.Client
	Backend   storage.Backend
	Submitter *checkout.Submitter
	CartKey   string
	Logger    *logger.Logger
}

type quantityResponse struct {
	EventID  int      `json:"event_id"`
	TicketID int      `json:"ticket_id"`
	Quantity int      `json:"quantity"`
	Ceiling  int      `json:"ceiling"`
	Subtotal *float64 `json:"subtotal,omitempty"`
}

type checkoutView struct {
	Items     []models.LineItem `json:"items"`
	Total     float64           `json:"total"`
	OverStock []int             `json:"over_stock_ticket_ids,omitempty"`
}

type meResponse struct {
	User    *models.User `json:"user"`
	Admin   bool         `json:"admin"`
	Subject string       `json:"subject,omitempty"`
	Expired bool         `json:"expired"`
}

// clientID returns the X-Cart-ID header, or "" for the shared cart.
func clientID(r *http.Request) (string, error) {
	id := r.Header.Get(CartIDHeader)
	if id == "" {
		return "", nil
	}
	if !cartIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid %s header", CartIDHeader)
	}
	return id, nil
}

func (h *Handler) cartFor(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	id, err := clientID(r)
	if err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid cart id", err.Error()))
		return nil, false
	}
	return cart.NewStore(h.Backend, cart.KeyFor(h.CartKey, id), h.Logger), true
}

// sessionFor requires X-Cart-ID: sessions are never shared between clients.
func (h *Handler) sessionFor(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	id, err := clientID(r)
	if err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid cart id", err.Error()))
		return nil, false
	}
	sess, err := session.NewStore(h.Backend, id, h.Logger)
	if err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse(CartIDHeader+" header required", err.Error()))
		return nil, false
	}
	return sess, true
}

// catalogFor forwards the caller's bearer token, falling back to the token stored for the
// caller's own session. Requests without a client id are sent unauthenticated.
func (h *Handler) catalogFor(r *http.Request) *catalog.Client {
	if token, err := auth.ExtractTokenFromRequest(r); err == nil {
		return h.Catalog.WithToken(token)
	}
	id, err := clientID(r)
	if err != nil {
		return h.Catalog
	}
	sess, err := session.NewStore(h.Backend, id, h.Logger)
	if err != nil {
		return h.Catalog
	}
	if token, err := sess.Token(r.Context()); err == nil {
		return h.Catalog.WithToken(token)
	}
	return h.Catalog
}

// catalogError maps catalog client failures onto storefront responses.
func (h *Handler) catalogError(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))

	var apiErr *catalog.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		writeJSON(w, h.Logger, http.StatusNotFound, ErrorResponse("Not found", apiErr.Message))
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		writeJSON(w, h.Logger, apiErr.StatusCode, ErrorResponse(op+" rejected", apiErr.Message))
	case catalog.IsTransport(err):
		resp := ErrorResponse("Ticketing service unavailable, please retry", err.Error())
		resp.Retryable = true
		writeJSON(w, h.Logger, http.StatusBadGateway, resp)
	default:
		writeJSON(w, h.Logger, http.StatusInternalServerError, ErrorResponse(op+" failed", err.Error()))
	}
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("ok", nil))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	categoryID := 0
	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 0 {
			writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid category", "category must be a non-negative integer"))
			return
		}
		categoryID = id
	}

	events, err := h.catalogFor(r).ListEvents(r.Context())
	if err != nil {
		h.catalogError(w, "ListEvents", err)
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("Events retrieved", catalog.FilterByCategory(events, categoryID)))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := intParam(r, "eventId")
	if err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid event id", err.Error()))
		return
	}

	event, err := h.catalogFor(r).GetEvent(r.Context(), eventID)
	if err != nil {
		h.catalogError(w, "GetEvent", err)
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("Event retrieved", event))
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogFor(r).ListCategories(r.Context())
	if err != nil {
		h.catalogError(w, "ListCategories", err)
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("Categories retrieved", categories))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	c, err := store.Load(r.Context())
	if err != nil {
		writeJSON(w, h.Logger, http.StatusServiceUnavailable, ErrorResponse("Cart unavailable", err.Error()))
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("Cart retrieved", c))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	if err := store.Clear(r.Context()); err != nil {
		writeJSON(w, h.Logger, http.StatusServiceUnavailable, ErrorResponse("Cart unavailable", err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) IncrementTicket(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, (*selector.Selector).Increment)
}

func (h *Handler) DecrementTicket(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, (*selector.Selector).Decrement)
}

// changeQuantity fetches the event for a fresh ceiling and price, then drives a selector.
func (h *Handler) changeQuantity(w http.ResponseWriter, r *http.Request, step func(*selector.Selector, context.Context) error) {
	eventID, err := intParam(r, "eventId")
	if err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid event id", err.Error()))
		return
	}
	ticketID, err := intParam(r, "ticketId")
	if err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid ticket id", err.Error()))
		return
	}
	store, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	event, err := h.catalogFor(r).GetEvent(r.Context(), eventID)
	if err != nil {
		h.catalogError(w, "GetEvent", err)
		return
	}
	var ticket *models.Ticket
	for i := range event.Tickets {
		if event.Tickets[i].ID == ticketID {
			ticket = &event.Tickets[i]
			break
		}
	}
	if ticket == nil {
		writeJSON(w, h.Logger, http.StatusNotFound, ErrorResponse("Not found", fmt.Sprintf("event %d has no ticket %d", eventID, ticketID)))
		return
	}

	sel := selector.New(store, eventID, ticketID, ticket.TicketsAvailable, ticket.Price, func(q int) {
		h.Logger.Debug("CART", fmt.Sprintf("%s: event %d ticket %d now %d", store.Key(), eventID, ticketID, q))
	})
	if err := sel.Mount(r.Context()); err != nil {
		writeJSON(w, h.Logger, http.StatusServiceUnavailable, ErrorResponse("Cart unavailable", err.Error()))
		return
	}
	if err := step(sel, r.Context()); err != nil {
		writeJSON(w, h.Logger, http.StatusServiceUnavailable, ErrorResponse("Cart unavailable", err.Error()))
		return
	}

	resp := quantityResponse{EventID: eventID, TicketID: ticketID, Quantity: sel.Quantity(), Ceiling: sel.Ceiling()}
	if sub, ok := sel.Subtotal(); ok {
		resp.Subtotal = &sub
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("Quantity updated", resp))
}

func (h *Handler) reconciler(r *http.Request, store *cart.Store) *reconcile.Reconciler {
	return reconcile.New(store, h.catalogFor(r), h.Logger)
}

// reconcileError writes the response for a failed reconcile.
func (h *Handler) reconcileError(w http.ResponseWriter, err error) {
	if errors.Is(err, reconcile.ErrFetchFailed) {
		resp := ErrorResponse("Could not load your tickets, please retry", err.Error())
		resp.Retryable = true
		writeJSON(w, h.Logger, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, h.Logger, http.StatusServiceUnavailable, ErrorResponse("Cart unavailable", err.Error()))
}

func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	store, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	res, err := h.reconciler(r, store).Reconcile(r.Context())
	if err != nil {
		h.reconcileError(w, err)
		return
	}

	view := checkoutView{Items: res.Items, Total: res.Total}
	for _, item := range res.Items {
		if item.OverStock() {
			view.OverStock = append(view.OverStock, item.TicketID)
		}
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("Checkout ready", view))
}

func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	var contact checkout.Contact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid request body", err.Error()))
		return
	}
	// reject bad input before any network call
	if fields := checkout.ValidateContact(contact); fields != nil {
		h.validationError(w, fields)
		return
	}

	store, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	// priced inside Submit, under the cart's checkout guard
	rec := h.reconciler(r, store)
	price := func(ctx context.Context) ([]models.LineItem, float64, error) {
		res, err := rec.Reconcile(ctx)
		if err != nil {
			return nil, 0, err
		}
		return res.Items, res.Total, nil
	}

	conf, err := h.Submitter.Submit(r.Context(), store, contact, price)
	var verr *checkout.ValidationError
	switch {
	case err == nil:
		writeJSON(w, h.Logger, http.StatusCreated, SuccessResponse("Order placed", conf))
	case errors.As(err, &verr):
		h.validationError(w, verr.Fields)
	case errors.Is(err, checkout.ErrPricing):
		h.reconcileError(w, err)
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrInFlight):
		writeJSON(w, h.Logger, http.StatusConflict, ErrorResponse("Checkout not possible", err.Error()))
	default:
		resp := ErrorResponse("Order could not be placed, please retry", err.Error())
		resp.Retryable = true
		writeJSON(w, h.Logger, http.StatusBadGateway, resp)
	}
}

func (h *Handler) validationError(w http.ResponseWriter, fields checkout.FieldErrors) {
	resp := ErrorResponse("Validation failed", (&checkout.ValidationError{Fields: fields}).Error())
	resp.Fields = fields
	writeJSON(w, h.Logger, http.StatusUnprocessableEntity, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, h.Logger, http.StatusBadRequest, ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if fields := checkout.Validate(req); fields != nil {
		h.validationError(w, fields)
		return
	}
	sess, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	resp, err := h.Catalog.Login(r.Context(), req)
	if err != nil {
		h.catalogError(w, "Login", err)
		return
	}
	if err := sess.Save(r.Context(), resp); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Login: failed to save session: %v", err))
		writeJSON(w, h.Logger, http.StatusBadGateway, ErrorResponse("Login failed", err.Error()))
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse(resp.Message, resp))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	if err := sess.Clear(r.Context()); err != nil {
		writeJSON(w, h.Logger, http.StatusServiceUnavailable, ErrorResponse("Session unavailable", err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	claims, err := sess.Claims(r.Context())
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeJSON(w, h.Logger, http.StatusUnauthorized, ErrorResponse("Not logged in", err.Error()))
		return
	case errors.Is(err, auth.ErrNotJWT):
		// the token is opaque to the storefront; claims are only read when it is a JWT
		h.Logger.Debug("AUTH", fmt.Sprintf("Session token carries no readable claims: %v", err))
		claims = nil
	case err != nil:
		writeJSON(w, h.Logger, http.StatusServiceUnavailable, ErrorResponse("Session unavailable", err.Error()))
		return
	}
	user, err := sess.User(r.Context())
	if err != nil {
		writeJSON(w, h.Logger, http.StatusServiceUnavailable, ErrorResponse("Session unavailable", err.Error()))
		return
	}

	me := meResponse{User: user, Admin: user.IsAdmin()}
	if claims != nil {
		me.Subject = claims.Subject
		me.Expired = claims.Expired(time.Now())
		me.Admin = me.Admin || claims.Role == string(models.RoleAdmin)
	}
	writeJSON(w, h.Logger, http.StatusOK, SuccessResponse("Session", me))
}
