package handlers

import (
	"fmt"
	"net/http"

	"medmarket/internal/auth"
	"medmarket/models"
)

// GetMyTransactionsHandler handles GET /api/transactions/my: every deal the
// calling org is party to, on either side.
func (h *Handler) GetMyTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	txns, err := h.Store.GetOrgTransactions(r.Context(), auth.OrgID(r.Context()), params.Limit, params.Offset)
	if err != nil {
		h.storageError(w, err, "Failed to get transactions")
		return
	}

	writeJSON(w, http.StatusOK, txns)
}

// GetCounterpartyHandler handles GET /api/transactions/{transactionId}/counterparty.
// After acceptance the reveal is mutual: either party may fetch the other's
// contact card, third parties get nothing.
func (h *Handler) GetCounterpartyHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := pathID(w, r, "transactionId")
	if !ok {
		return
	}

	t, err := h.Store.GetTransaction(r.Context(), transactionID)
	if err != nil {
		h.storageError(w, err, "Failed to get transaction")
		return
	}

	callerOrgID := auth.OrgID(r.Context())
	role, party := t.PartyRole(callerOrgID)
	if !party {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	counterpartyID := t.SupplierOrgID
	if role == "supplier" {
		counterpartyID = t.BuyerOrgID
	}

	org, err := h.Store.GetOrganization(r.Context(), counterpartyID)
	if err != nil {
		h.storageError(w, err, "Failed to get counterparty")
		return
	}

	writeJSON(w, http.StatusOK, org)
}

// UpdateTransactionStatusHandler handles PUT /api/transactions/{transactionId}/status.
// The target status comes from the status query parameter; forward-only,
// supplier dispatches, buyer confirms delivery. Alias statuses
// (pending/shipped/completed) normalize onto the stored machine.
func (h *Handler) UpdateTransactionStatusHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := pathID(w, r, "transactionId")
	if !ok {
		return
	}
	statusStr := r.URL.Query().Get("status")
	if statusStr == "" {
		http.Error(w, "Missing status", http.StatusBadRequest)
		return
	}

	next, ok := models.NormalizeTransactionStatus(statusStr)
	if !ok {
		http.Error(w, "Invalid status value", http.StatusBadRequest)
		return
	}

	callerOrgID := auth.OrgID(r.Context())
	t, err := h.Store.UpdateTransactionStatus(r.Context(), transactionID, next, callerOrgID)
	if err != nil {
		h.storageError(w, err, "Failed to update transaction status")
		return
	}

	h.audit(r.Context(), callerOrgID, "transaction.status",
		fmt.Sprintf("transaction %s moved to %s", t.ID, t.Status))

	writeJSON(w, http.StatusOK, t)
}

// MarkTransactionPaidHandler handles PUT /api/transactions/{transactionId}/pay.
// Buyer only; payment goes pending -> paid once.
func (h *Handler) MarkTransactionPaidHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := pathID(w, r, "transactionId")
	if !ok {
		return
	}

	callerOrgID := auth.OrgID(r.Context())
	t, err := h.Store.MarkTransactionPaid(r.Context(), transactionID, callerOrgID)
	if err != nil {
		h.storageError(w, err, "Failed to mark transaction paid")
		return
	}

	h.audit(r.Context(), callerOrgID, "transaction.pay",
		fmt.Sprintf("transaction %s marked paid", t.ID))

	writeJSON(w, http.StatusOK, t)
}
