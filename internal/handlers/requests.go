package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medmarket/internal/auth"
	"medmarket/internal/masking"
	"medmarket/internal/notify"
	"medmarket/models"
)

type createRequestInput struct {
	MedicineName        string `json:"medicineName"`
	Quantity            int    `json:"quantity"`
	RequiredBy          string `json:"requiredBy"`
	SpecialRequirements string `json:"specialRequirements"`
}

// CreateRequestHandler handles POST /api/requests/new. The buyer org comes
// from the session, never the body; the request goes out under a fresh
// masked handle.
func (h *Handler) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var input createRequestInput
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	requiredBy, err := validateRequestInput(&input)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := models.Request{
		BuyerHandle:         masking.Handle(masking.RoleBuyer),
		BuyerOrgID:          auth.OrgID(r.Context()),
		MedicineName:        strings.TrimSpace(input.MedicineName),
		Quantity:            input.Quantity,
		RequiredBy:          requiredBy,
		SpecialRequirements: strings.TrimSpace(input.SpecialRequirements),
	}

	if err := h.Store.CreateRequest(r.Context(), &req); err != nil {
		h.storageError(w, err, "Failed to create request")
		return
	}

	h.Notifier.Publish(r.Context(), notify.Event{
		Type:        models.NotifyNewRequest,
		Title:       "New medicine request",
		Message:     fmt.Sprintf("%s is requesting %d x %s", req.BuyerHandle, req.Quantity, req.MedicineName),
		RelatedType: "request",
		RelatedID:   req.ID,
	})
	h.audit(r.Context(), req.BuyerOrgID, "request.create",
		fmt.Sprintf("request %s: %d x %s", req.ID, req.Quantity, req.MedicineName))

	writeJSON(w, http.StatusOK, req)
}

func validateRequestInput(in *createRequestInput) (time.Time, error) {
	if strings.TrimSpace(in.MedicineName) == "" || len(in.MedicineName) > 200 {
		return time.Time{}, errors.New("medicineName is required and max length 200")
	}
	if in.Quantity <= 0 {
		return time.Time{}, errors.New("quantity must be a positive integer")
	}
	if len(in.SpecialRequirements) > 500 {
		return time.Time{}, errors.New("specialRequirements max length 500")
	}
	requiredBy, err := parseDate(in.RequiredBy)
	if err != nil {
		return time.Time{}, errors.New("requiredBy must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	return requiredBy, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// GetOpenRequestsHandler handles GET /api/requests: every request still
// taking bids, buyer identity masked.
func (h *Handler) GetOpenRequestsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	requests, err := h.Store.GetOpenRequests(r.Context(), params.Limit, params.Offset)
	if err != nil {
		h.storageError(w, err, "Failed to get requests")
		return
	}

	writeJSON(w, http.StatusOK, requests)
}

// GetMyRequestsHandler handles GET /api/requests/my for the calling buyer.
func (h *Handler) GetMyRequestsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	requests, err := h.Store.GetOrgRequests(r.Context(), auth.OrgID(r.Context()), params.Limit, params.Offset)
	if err != nil {
		h.storageError(w, err, "Failed to get requests")
		return
	}

	writeJSON(w, http.StatusOK, requests)
}

// CancelRequestHandler handles PUT /api/requests/{requestId}/cancel. Only
// the owning buyer may withdraw, and only while the request is still open;
// pending bids expire and their suppliers are notified.
func (h *Handler) CancelRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestId")
	if !ok {
		return
	}

	callerOrgID := auth.OrgID(r.Context())
	res, err := h.Store.CancelRequest(r.Context(), requestID, callerOrgID)
	if err != nil {
		h.storageError(w, err, "Failed to cancel request")
		return
	}

	for _, supplierID := range res.ExpiredSupplierIDs {
		h.Notifier.Publish(r.Context(), notify.Event{
			Type:        models.NotifyRequestCancelled,
			Title:       "Request cancelled",
			Message:     fmt.Sprintf("Request for %s was withdrawn; your bid expired", res.Request.MedicineName),
			TargetOrgID: supplierID,
			RelatedType: "request",
			RelatedID:   res.Request.ID,
		})
	}
	h.audit(r.Context(), callerOrgID, "request.cancel",
		fmt.Sprintf("request %s cancelled, %d bids expired", res.Request.ID, len(res.ExpiredSupplierIDs)))

	writeJSON(w, http.StatusOK, res.Request)
}
