package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"medmarket/internal/auth"
	"medmarket/internal/masking"
	"medmarket/internal/notify"
	"medmarket/models"
)

type submitBidInput struct {
	RequestID    string  `json:"requestId"`
	PricePerUnit float64 `json:"pricePerUnit"`
	DeliveryDays int     `json:"deliveryDays"`
	Notes        string  `json:"notes"`
}

// CreateBidHandler handles POST /api/bids/new. Total price and delivery
// date are computed in storage from the parent request; the supplier only
// names a unit price and a lead time.
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var input submitBidInput
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	if err := validateBidInput(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bid := models.Bid{
		RequestID:      input.RequestID,
		SupplierHandle: masking.Handle(masking.RoleSupplier),
		SupplierOrgID:  auth.OrgID(r.Context()),
		PricePerUnit:   input.PricePerUnit,
		DeliveryDays:   input.DeliveryDays,
		Notes:          strings.TrimSpace(input.Notes),
	}

	req, err := h.Store.SubmitBid(r.Context(), &bid)
	if err != nil {
		h.storageError(w, err, "Failed to submit bid")
		return
	}

	h.Notifier.Publish(r.Context(), notify.Event{
		Type:        models.NotifyNewBid,
		Title:       "New bid received",
		Message:     fmt.Sprintf("%s bid %.2f/unit on your %s request", bid.SupplierHandle, bid.PricePerUnit, req.MedicineName),
		TargetOrgID: req.BuyerOrgID,
		RelatedType: "bid",
		RelatedID:   bid.ID,
	})
	h.audit(r.Context(), bid.SupplierOrgID, "bid.submit",
		fmt.Sprintf("bid %s on request %s at %.2f/unit", bid.ID, bid.RequestID, bid.PricePerUnit))

	writeJSON(w, http.StatusOK, bid)
}

func validateBidInput(in *submitBidInput) error {
	if _, err := uuid.Parse(in.RequestID); err != nil {
		return errors.New("requestId must be a valid UUID")
	}
	if in.PricePerUnit <= 0 {
		return errors.New("pricePerUnit must be positive")
	}
	if in.DeliveryDays < 0 {
		return errors.New("deliveryDays must not be negative")
	}
	if len(in.Notes) > 500 {
		return errors.New("notes max length 500")
	}
	return nil
}

// GetBidsForRequestHandler handles GET /api/requests/{requestId}/bids.
// Supplier identities stay masked; only the masked handle is serialized.
func (h *Handler) GetBidsForRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestId")
	if !ok {
		return
	}
	params := parsePaginationParams(r)

	if _, err := h.Store.GetRequest(r.Context(), requestID); err != nil {
		h.storageError(w, err, "Failed to get request")
		return
	}

	bids, err := h.Store.GetBidsForRequest(r.Context(), requestID, params.Limit, params.Offset)
	if err != nil {
		h.storageError(w, err, "Failed to get bids")
		return
	}

	writeJSON(w, http.StatusOK, bids)
}

// GetMyBidsHandler handles GET /api/bids/my for the calling supplier.
func (h *Handler) GetMyBidsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	bids, err := h.Store.GetOrgBids(r.Context(), auth.OrgID(r.Context()), params.Limit, params.Offset)
	if err != nil {
		h.storageError(w, err, "Failed to get bids")
		return
	}

	writeJSON(w, http.StatusOK, bids)
}

type acceptBidResponse struct {
	Transaction  *models.Transaction  `json:"transaction"`
	Counterparty *models.Organization `json:"counterparty"`
}

// AcceptBidHandler handles PUT /api/bids/{bidId}/accept — the reveal. Only
// the request's buyer may accept; exactly one bid per request can win. On
// success the buyer gets the supplier's real contact card, the supplier is
// told who the buyer is, and every losing supplier gets a rejection.
func (h *Handler) AcceptBidHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := pathID(w, r, "bidId")
	if !ok {
		return
	}

	callerOrgID := auth.OrgID(r.Context())
	res, err := h.Store.AcceptBid(r.Context(), bidID, callerOrgID)
	if err != nil {
		h.storageError(w, err, "Failed to accept bid")
		return
	}

	deal := res.Transaction
	h.Notifier.Publish(r.Context(), notify.Event{
		Type:  models.NotifyBidAccepted,
		Title: "Bid accepted",
		Message: fmt.Sprintf("%s accepted your bid for %d x %s (total %.2f)",
			res.Buyer.Name, deal.Quantity, deal.MedicineName, deal.TotalAmount),
		TargetOrgID: deal.SupplierOrgID,
		RelatedType: "transaction",
		RelatedID:   deal.ID,
	})
	for _, supplierID := range res.RejectedSupplierIDs {
		h.Notifier.Publish(r.Context(), notify.Event{
			Type:        models.NotifyBidRejected,
			Title:       "Bid rejected",
			Message:     fmt.Sprintf("Your bid for %s was not selected", deal.MedicineName),
			TargetOrgID: supplierID,
			RelatedType: "request",
			RelatedID:   deal.RequestID,
		})
	}
	h.audit(r.Context(), callerOrgID, "bid.accept",
		fmt.Sprintf("bid %s accepted, transaction %s created, %d bids rejected",
			bidID, deal.ID, len(res.RejectedSupplierIDs)))

	writeJSON(w, http.StatusOK, acceptBidResponse{
		Transaction:  deal,
		Counterparty: res.Supplier,
	})
}
