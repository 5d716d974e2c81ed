// Package httpapi is the request/response glue over the queue core. It
// marshals JSON to and from the core contracts; ordering, dispatch, and
// reminder logic live below it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/directory"
	"ticketflow/internal/models"
	"ticketflow/internal/notify"
	"ticketflow/internal/queue"
	"ticketflow/internal/store"
)

type Handler struct {
	resolver   *queue.PositionResolver
	dispatcher *queue.DispatchController
	booking    *queue.BookingService
	directory  *directory.Directory
	validator  *requestValidator
	logger     logger.Logger
	timeout    time.Duration
}

type Options struct {
	RequestTimeout time.Duration
}

func NewHandler(
	resolver *queue.PositionResolver,
	dispatcher *queue.DispatchController,
	booking *queue.BookingService,
	dir *directory.Directory,
	opts Options,
	log logger.Logger,
) (*Handler, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Handler{
		resolver:   resolver,
		dispatcher: dispatcher,
		booking:    booking,
		directory:  dir,
		validator:  validator,
		logger:     log.WithFields(map[string]interface{}{"component": "httpapi"}),
		timeout:    timeout,
	}, nil
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /api/tickets", h.handleCreateTicket)
	mux.HandleFunc("GET /api/tickets/{id}/position", h.handlePosition)
	mux.HandleFunc("POST /api/tickets/actions/call-next", h.handleCallNext)
	mux.HandleFunc("POST /api/tickets/{id}/status", h.handleUpdateStatus)
	mux.HandleFunc("POST /api/tickets/{id}/transfer", h.handleTransfer)
	mux.HandleFunc("POST /api/directory/code", h.handleIssueCode)
	mux.HandleFunc("POST /api/directory/bind", h.handleBind)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type createTicketRequest struct {
	Recipient   string `json:"recipient"`
	OrgID       string `json:"org_id"`
	BranchID    string `json:"branch_id"`
	ServiceID   string `json:"service_id"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		writeError(w, stderrors.NewValidationFailedError("request body unreadable or too large"))
		return
	}

	violations, err := h.validator.validateBooking(body)
	if err != nil {
		writeError(w, stderrors.NewValidationFailedError("payload is not valid JSON"))
		return
	}
	if violations != "" {
		writeError(w, stderrors.NewValidationFailedError(violations))
		return
	}

	var req createTicketRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, stderrors.NewValidationFailedError("payload is not valid JSON"))
		return
	}

	booking := queue.BookingRequest{
		Recipient: req.Recipient,
		OrgID:     req.OrgID,
		BranchID:  req.BranchID,
		ServiceID: req.ServiceID,
	}
	if req.ScheduledAt != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			writeError(w, stderrors.NewValidationFailedError("scheduled_at must be RFC 3339"))
			return
		}
		booking.ScheduledAt = &at
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	ticket, err := h.booking.Create(ctx, booking)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, ticket)
}

func (h *Handler) handlePosition(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	pos, err := h.resolver.Resolve(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pos)
}

type callNextRequest struct {
	OrgID    string `json:"org_id"`
	BranchID string `json:"branch_id"`
}

type callNextResponse struct {
	Waiting bool           `json:"waiting"`
	Ticket  *models.Ticket `json:"ticket,omitempty"`
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	var req callNextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, stderrors.NewValidationFailedError(err.Error()))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	ticket, err := h.dispatcher.CallNext(ctx, store.Scope{OrgID: req.OrgID, BranchID: req.BranchID})
	if err != nil {
		// An empty pool is an ordinary answer, not an error response.
		if errors.Is(err, stderrors.ErrNoneWaiting) {
			writeData(w, http.StatusOK, callNextResponse{Waiting: false})
			return
		}
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, callNextResponse{Waiting: true, Ticket: ticket})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, stderrors.NewValidationFailedError(err.Error()))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	ticket, err := h.dispatcher.UpdateStatus(ctx, r.PathValue("id"), models.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, ticket)
}

type transferRequest struct {
	ServiceID string `json:"service_id"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, stderrors.NewValidationFailedError(err.Error()))
		return
	}
	if req.ServiceID == "" {
		writeError(w, stderrors.NewValidationFailedError("service_id is required"))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	ticket, err := h.dispatcher.Transfer(ctx, r.PathValue("id"), req.ServiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, ticket)
}

type issueCodeRequest struct {
	Recipient string `json:"recipient"`
}

type issueCodeResponse struct {
	Code string `json:"code"`
}

func (h *Handler) handleIssueCode(w http.ResponseWriter, r *http.Request) {
	var req issueCodeRequest
	if err := decodeJSON(r, &req); err != nil || req.Recipient == "" {
		writeError(w, stderrors.NewValidationFailedError("recipient is required"))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	code, err := h.directory.IssueCode(ctx, req.Recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, issueCodeResponse{Code: code})
}

type bindRequest struct {
	Recipient string         `json:"recipient"`
	Code      string         `json:"code"`
	Contact   notify.Contact `json:"contact"`
}

func (h *Handler) handleBind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := decodeJSON(r, &req); err != nil || req.Recipient == "" || req.Code == "" {
		writeError(w, stderrors.NewValidationFailedError("recipient and code are required"))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	ok, err := h.directory.VerifyCode(ctx, req.Recipient, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, stderrors.NewVerificationFailedError(req.Recipient))
		return
	}

	if err := h.directory.Bind(ctx, req.Recipient, req.Contact); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"recipient": req.Recipient})
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// Response envelope shared by every endpoint.

type successEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type errorEnvelope struct {
	Success bool          `json:"success"`
	Error   responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successEnvelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	stdErr := stderrors.Normalize(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(stderrors.HTTPStatus(stdErr.Code))
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Success: false,
		Error: responseError{
			Code:    string(stdErr.Code),
			Message: stdErr.Message,
		},
	})
}
