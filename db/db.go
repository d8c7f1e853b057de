package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"medmarket/models"
)

var (
	// ErrNotFound: referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: state machine violation (double accept, closed request,
	// out-of-order fulfillment transition).
	ErrConflict = errors.New("conflict")
	// ErrForbidden: caller does not own / is not party to the row.
	ErrForbidden = errors.New("forbidden")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Organization

func (s *Storage) CreateOrganization(ctx context.Context, o *models.Organization) error {
	o.ID = uuid.NewString()
	query := `
        INSERT INTO organization (id, name, type, email, phone, address)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`
	return s.db.QueryRowContext(ctx, query, o.ID, o.Name, o.Type, o.Email, o.Phone, o.Address).
		Scan(&o.CreatedAt)
}

func (s *Storage) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	o := &models.Organization{}
	query := `SELECT * FROM organization WHERE id=$1`
	err := s.db.GetContext(ctx, o, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// Request

func (s *Storage) CreateRequest(ctx context.Context, r *models.Request) error {
	r.ID = uuid.NewString()
	r.Status = models.RequestOpen
	query := `
        INSERT INTO request
            (id, buyer_handle, buyer_org_id, medicine_name, quantity, required_by, special_requirements, status)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING bids_count, created_at`
	return s.db.QueryRowContext(ctx, query,
		r.ID, r.BuyerHandle, r.BuyerOrgID, r.MedicineName, r.Quantity,
		r.RequiredBy, r.SpecialRequirements, r.Status).
		Scan(&r.BidsCount, &r.CreatedAt)
}

func (s *Storage) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	r := &models.Request{}
	query := `SELECT * FROM request WHERE id=$1`
	err := s.db.GetContext(ctx, r, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// GetOpenRequests lists requests still taking bids, most recent first.
// Identity redaction happens at the JSON layer; the buyer org id never
// leaves the handler.
func (s *Storage) GetOpenRequests(ctx context.Context, limit, offset int) ([]models.Request, error) {
	query := `
        SELECT * FROM request
        WHERE status IN ($1, $2)
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4`
	requests := []models.Request{}
	err := s.db.SelectContext(ctx, &requests, query,
		models.RequestOpen, models.RequestBidReceived, limit, offset)
	return requests, err
}

func (s *Storage) GetOrgRequests(ctx context.Context, orgID string, limit, offset int) ([]models.Request, error) {
	query := `
        SELECT * FROM request
        WHERE buyer_org_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	requests := []models.Request{}
	err := s.db.SelectContext(ctx, &requests, query, orgID, limit, offset)
	return requests, err
}

// CancelResult carries the suppliers whose bids were expired by the
// cancellation so the caller can notify them.
type CancelResult struct {
	Request            *models.Request
	ExpiredSupplierIDs []string
}

// CancelRequest withdraws a still-open request owned by callerOrgID and
// expires every submitted bid on it.
func (s *Storage) CancelRequest(ctx context.Context, requestID, callerOrgID string) (*CancelResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if r.BuyerOrgID != callerOrgID {
		return nil, ErrForbidden
	}
	if !r.Status.Biddable() {
		return nil, ErrConflict
	}

	r.Status = models.RequestCancelled
	if _, err := tx.ExecContext(ctx,
		`UPDATE request SET status=$1 WHERE id=$2`, r.Status, r.ID); err != nil {
		return nil, err
	}

	expired := []string{}
	err = tx.SelectContext(ctx, &expired, `
        UPDATE bid SET status=$1
        WHERE request_id=$2 AND status=$3
        RETURNING supplier_org_id`,
		models.BidExpired, r.ID, models.BidSubmitted)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &CancelResult{Request: r, ExpiredSupplierIDs: expired}, nil
}

// Bid

// SubmitBid inserts the bid against a still-open request, deriving the
// computed fields from the request's quantity, and flips the request to
// bid_received on its first bid. Returns the parent request as seen after
// the insert.
func (s *Storage) SubmitBid(ctx context.Context, b *models.Bid) (*models.Request, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r, err := lockRequest(ctx, tx, b.RequestID)
	if err != nil {
		return nil, err
	}
	if !r.Status.Biddable() {
		return nil, ErrConflict
	}

	b.ID = uuid.NewString()
	b.Status = models.BidSubmitted
	b.CreatedAt = time.Now().UTC()
	b.Finalize(r.Quantity, b.CreatedAt)

	_, err = tx.ExecContext(ctx, `
        INSERT INTO bid
            (id, request_id, supplier_handle, supplier_org_id, price_per_unit,
             total_price, delivery_days, delivery_date, notes, status, created_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.RequestID, b.SupplierHandle, b.SupplierOrgID, b.PricePerUnit,
		b.TotalPrice, b.DeliveryDays, b.DeliveryDate, b.Notes, b.Status, b.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.BidsCount++
	if r.Status == models.RequestOpen {
		r.Status = models.RequestBidReceived
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE request SET status=$1, bids_count=$2 WHERE id=$3`,
		r.Status, r.BidsCount, r.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Storage) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	b := &models.Bid{}
	query := `SELECT * FROM bid WHERE id=$1`
	err := s.db.GetContext(ctx, b, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *Storage) GetBidsForRequest(ctx context.Context, requestID string, limit, offset int) ([]models.Bid, error) {
	query := `
        SELECT * FROM bid
        WHERE request_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	bids := []models.Bid{}
	err := s.db.SelectContext(ctx, &bids, query, requestID, limit, offset)
	return bids, err
}

func (s *Storage) GetOrgBids(ctx context.Context, orgID string, limit, offset int) ([]models.Bid, error) {
	query := `
        SELECT * FROM bid
        WHERE supplier_org_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	bids := []models.Bid{}
	err := s.db.SelectContext(ctx, &bids, query, orgID, limit, offset)
	return bids, err
}

// Acceptance

// AcceptResult is everything the reveal needs: the created deal, both
// parties' contact cards, and the losers to notify.
type AcceptResult struct {
	Transaction         *models.Transaction
	Buyer               *models.Organization
	Supplier            *models.Organization
	RejectedSupplierIDs []string
}

// AcceptBid runs the whole acceptance cascade in one transaction. The
// request row is locked FOR UPDATE first, which serializes concurrent
// accepts on sibling bids: exactly one wins, the rest see ErrConflict after
// re-reading the status under the lock. The UNIQUE constraint on
// transaction.request_id backstops this at the schema level.
func (s *Storage) AcceptBid(ctx context.Context, bidID, callerOrgID string) (*AcceptResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b := &models.Bid{}
	err = tx.GetContext(ctx, b, `SELECT * FROM bid WHERE id=$1`, bidID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r, err := lockRequest(ctx, tx, b.RequestID)
	if err != nil {
		return nil, err
	}
	if r.BuyerOrgID != callerOrgID {
		return nil, ErrForbidden
	}
	if !r.Status.Biddable() {
		return nil, ErrConflict
	}

	// Re-read the bid under the request lock; a sibling accept may have
	// rejected it between the first read and the lock.
	err = tx.GetContext(ctx, b, `SELECT * FROM bid WHERE id=$1`, bidID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BidSubmitted {
		return nil, ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bid SET status=$1 WHERE id=$2`, models.BidAccepted, b.ID); err != nil {
		return nil, err
	}

	rejected := []string{}
	err = tx.SelectContext(ctx, &rejected, `
        UPDATE bid SET status=$1
        WHERE request_id=$2 AND id<>$3 AND status=$4
        RETURNING supplier_org_id`,
		models.BidRejected, r.ID, b.ID, models.BidSubmitted)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE request SET status=$1 WHERE id=$2`, models.RequestAccepted, r.ID); err != nil {
		return nil, err
	}

	deal := &models.Transaction{
		ID:            uuid.NewString(),
		RequestID:     r.ID,
		BidID:         b.ID,
		BuyerOrgID:    r.BuyerOrgID,
		SupplierOrgID: b.SupplierOrgID,
		MedicineName:  r.MedicineName,
		Quantity:      r.Quantity,
		UnitPrice:     b.PricePerUnit,
		TotalAmount:   b.TotalPrice,
		Status:        models.TransactionAccepted,
		PaymentStatus: models.PaymentPending,
	}
	err = tx.QueryRowContext(ctx, `
        INSERT INTO transaction
            (id, request_id, bid_id, buyer_org_id, supplier_org_id, medicine_name,
             quantity, unit_price, total_amount, status, payment_status)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING created_at, updated_at`,
		deal.ID, deal.RequestID, deal.BidID, deal.BuyerOrgID, deal.SupplierOrgID,
		deal.MedicineName, deal.Quantity, deal.UnitPrice, deal.TotalAmount,
		deal.Status, deal.PaymentStatus).
		Scan(&deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		return nil, err
	}

	buyer := &models.Organization{}
	if err := tx.GetContext(ctx, buyer, `SELECT * FROM organization WHERE id=$1`, deal.BuyerOrgID); err != nil {
		return nil, err
	}
	supplier := &models.Organization{}
	if err := tx.GetContext(ctx, supplier, `SELECT * FROM organization WHERE id=$1`, deal.SupplierOrgID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &AcceptResult{
		Transaction:         deal,
		Buyer:               buyer,
		Supplier:            supplier,
		RejectedSupplierIDs: rejected,
	}, nil
}

// Transaction

func (s *Storage) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t := &models.Transaction{}
	query := `SELECT * FROM transaction WHERE id=$1`
	err := s.db.GetContext(ctx, t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *Storage) GetOrgTransactions(ctx context.Context, orgID string, limit, offset int) ([]models.Transaction, error) {
	query := `
        SELECT * FROM transaction
        WHERE buyer_org_id = $1 OR supplier_org_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	txns := []models.Transaction{}
	err := s.db.SelectContext(ctx, &txns, query, orgID, limit, offset)
	return txns, err
}

// UpdateTransactionStatus advances the fulfillment machine one step.
// Dispatch belongs to the supplier, delivery confirmation to the buyer.
func (s *Storage) UpdateTransactionStatus(ctx context.Context, id string, next models.TransactionStatus, callerOrgID string) (*models.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t := &models.Transaction{}
	err = tx.GetContext(ctx, t, `SELECT * FROM transaction WHERE id=$1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	role, party := t.PartyRole(callerOrgID)
	if !party {
		return nil, ErrForbidden
	}
	switch next {
	case models.TransactionDispatched:
		if role != "supplier" {
			return nil, ErrForbidden
		}
	case models.TransactionDelivered:
		if role != "buyer" {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrConflict
	}
	if !t.Status.CanAdvanceTo(next) {
		return nil, ErrConflict
	}

	t.Status = next
	err = tx.QueryRowContext(ctx,
		`UPDATE transaction SET status=$1, updated_at=NOW() WHERE id=$2 RETURNING updated_at`,
		t.Status, t.ID).Scan(&t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

// MarkTransactionPaid flips payment from pending to paid. Buyer only.
func (s *Storage) MarkTransactionPaid(ctx context.Context, id, callerOrgID string) (*models.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t := &models.Transaction{}
	err = tx.GetContext(ctx, t, `SELECT * FROM transaction WHERE id=$1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if t.BuyerOrgID != callerOrgID {
		return nil, ErrForbidden
	}
	if t.PaymentStatus != models.PaymentPending {
		return nil, ErrConflict
	}

	t.PaymentStatus = models.PaymentPaid
	err = tx.QueryRowContext(ctx,
		`UPDATE transaction SET payment_status=$1, updated_at=NOW() WHERE id=$2 RETURNING updated_at`,
		t.PaymentStatus, t.ID).Scan(&t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

// Notification

func (s *Storage) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.ID = uuid.NewString()
	query := `
        INSERT INTO notification
            (id, type, title, message, target_org_id, related_entity_type, related_entity_id)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)
        RETURNING is_read, created_at`
	return s.db.QueryRowContext(ctx, query,
		n.ID, n.Type, n.Title, n.Message, n.TargetOrgID,
		n.RelatedEntityType, n.RelatedEntityID).
		Scan(&n.IsRead, &n.CreatedAt)
}

// GetOrgNotifications returns the org's notifications plus broadcasts.
func (s *Storage) GetOrgNotifications(ctx context.Context, orgID string, limit, offset int) ([]models.Notification, error) {
	query := `
        SELECT * FROM notification
        WHERE target_org_id = $1 OR target_org_id = ''
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	notifications := []models.Notification{}
	err := s.db.SelectContext(ctx, &notifications, query, orgID, limit, offset)
	return notifications, err
}

func (s *Storage) MarkNotificationRead(ctx context.Context, id, orgID string) (*models.Notification, error) {
	n := &models.Notification{}
	err := s.db.GetContext(ctx, n, `SELECT * FROM notification WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.TargetOrgID != "" && n.TargetOrgID != orgID {
		return nil, ErrForbidden
	}
	n.IsRead = true
	_, err = s.db.ExecContext(ctx, `UPDATE notification SET is_read=TRUE WHERE id=$1`, id)
	return n, err
}

// Audit

func (s *Storage) CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	e.ID = uuid.NewString()
	query := `
        INSERT INTO audit_log (id, actor_org_id, action, detail)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`
	return s.db.QueryRowContext(ctx, query, e.ID, e.ActorOrgID, e.Action, e.Detail).
		Scan(&e.CreatedAt)
}

// lockRequest reads the request row FOR UPDATE inside tx, taking the
// per-request critical section.
func lockRequest(ctx context.Context, tx *sqlx.Tx, id string) (*models.Request, error) {
	r := &models.Request{}
	err := tx.GetContext(ctx, r, `SELECT * FROM request WHERE id=$1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock request %s: %w", id, err)
	}
	return r, nil
}
