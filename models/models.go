package models

import "time"

type OrgType string

const (
	OrgPharmacy   OrgType = "pharmacy"
	OrgSupplier   OrgType = "supplier"
	OrgImporter   OrgType = "importer"
	OrgWholesaler OrgType = "wholesaler"
)

func ValidOrgType(t OrgType) bool {
	switch t {
	case OrgPharmacy, OrgSupplier, OrgImporter, OrgWholesaler:
		return true
	default:
		return false
	}
}

type RequestStatus string

const (
	RequestOpen        RequestStatus = "open"
	RequestBidReceived RequestStatus = "bid_received"
	RequestAccepted    RequestStatus = "accepted"
	RequestCancelled   RequestStatus = "cancelled"
)

// Biddable reports whether the request still takes bids.
func (s RequestStatus) Biddable() bool {
	return s == RequestOpen || s == RequestBidReceived
}

type BidStatus string

const (
	BidSubmitted BidStatus = "submitted"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
	BidExpired   BidStatus = "expired"
)

type TransactionStatus string

const (
	TransactionAccepted   TransactionStatus = "accepted"
	TransactionDispatched TransactionStatus = "dispatched"
	TransactionDelivered  TransactionStatus = "delivered"
)

// NormalizeTransactionStatus maps the alias statuses callers use onto the
// stored three-state machine.
func NormalizeTransactionStatus(s string) (TransactionStatus, bool) {
	switch s {
	case "accepted", "pending":
		return TransactionAccepted, true
	case "dispatched", "shipped":
		return TransactionDispatched, true
	case "delivered", "completed":
		return TransactionDelivered, true
	default:
		return "", false
	}
}

// CanAdvanceTo allows forward single-step transitions only.
func (s TransactionStatus) CanAdvanceTo(next TransactionStatus) bool {
	switch {
	case s == TransactionAccepted && next == TransactionDispatched:
		return true
	case s == TransactionDispatched && next == TransactionDelivered:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type NotificationType string

const (
	NotifyNewRequest       NotificationType = "NEW_REQUEST"
	NotifyNewBid           NotificationType = "NEW_BID"
	NotifyBidAccepted      NotificationType = "BID_ACCEPTED"
	NotifyBidRejected      NotificationType = "BID_REJECTED"
	NotifyRequestCancelled NotificationType = "REQUEST_CANCELLED"
)

// Organization contact fields are what gets revealed on acceptance.
type Organization struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name" validate:"required,max=100"`
	Type      OrgType   `db:"type" json:"type" validate:"required,oneof=pharmacy supplier importer wholesaler"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Request is a buyer's posted need. The real buyer org is never serialized;
// suppliers only ever see the masked handle.
type Request struct {
	ID                  string        `db:"id" json:"id"`
	BuyerHandle         string        `db:"buyer_handle" json:"buyerHandle"`
	BuyerOrgID          string        `db:"buyer_org_id" json:"-"`
	MedicineName        string        `db:"medicine_name" json:"medicineName" validate:"required,max=200"`
	Quantity            int           `db:"quantity" json:"quantity" validate:"required,gt=0"`
	RequiredBy          time.Time     `db:"required_by" json:"requiredBy"`
	SpecialRequirements string        `db:"special_requirements" json:"specialRequirements,omitempty"`
	Status              RequestStatus `db:"status" json:"status"`
	BidsCount           int           `db:"bids_count" json:"bidsCount"`
	CreatedAt           time.Time     `db:"created_at" json:"createdAt"`
}

// Bid is a supplier's anonymous offer. Same masking rule as Request.
type Bid struct {
	ID             string    `db:"id" json:"id"`
	RequestID      string    `db:"request_id" json:"requestId" validate:"required"`
	SupplierHandle string    `db:"supplier_handle" json:"supplierHandle"`
	SupplierOrgID  string    `db:"supplier_org_id" json:"-"`
	PricePerUnit   float64   `db:"price_per_unit" json:"pricePerUnit" validate:"required,gt=0"`
	TotalPrice     float64   `db:"total_price" json:"totalPrice"`
	DeliveryDays   int       `db:"delivery_days" json:"deliveryDays" validate:"gte=0"`
	DeliveryDate   time.Time `db:"delivery_date" json:"deliveryDate"`
	Notes          string    `db:"notes" json:"notes,omitempty"`
	Status         BidStatus `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Finalize derives the computed fields from the parent request's quantity
// and the submission time. Caller input is never trusted for these.
func (b *Bid) Finalize(quantity int, now time.Time) {
	b.TotalPrice = b.PricePerUnit * float64(quantity)
	b.DeliveryDate = now.AddDate(0, 0, b.DeliveryDays)
}

// Transaction is the binding deal created exactly once per accepted bid.
// Both org ids sit here in the clear because only the two parties may fetch
// a transaction.
type Transaction struct {
	ID            string            `db:"id" json:"id"`
	RequestID     string            `db:"request_id" json:"requestId"`
	BidID         string            `db:"bid_id" json:"bidId"`
	BuyerOrgID    string            `db:"buyer_org_id" json:"buyerOrgId"`
	SupplierOrgID string            `db:"supplier_org_id" json:"supplierOrgId"`
	MedicineName  string            `db:"medicine_name" json:"medicineName"`
	Quantity      int               `db:"quantity" json:"quantity"`
	UnitPrice     float64           `db:"unit_price" json:"unitPrice"`
	TotalAmount   float64           `db:"total_amount" json:"totalAmount"`
	Status        TransactionStatus `db:"status" json:"status"`
	PaymentStatus PaymentStatus     `db:"payment_status" json:"paymentStatus"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updatedAt"`
}

// PartyRole returns which side of the deal the org is on, if any.
func (t *Transaction) PartyRole(orgID string) (string, bool) {
	switch orgID {
	case t.BuyerOrgID:
		return "buyer", true
	case t.SupplierOrgID:
		return "supplier", true
	default:
		return "", false
	}
}

// Notification with an empty TargetOrgID is a broadcast.
type Notification struct {
	ID                string           `db:"id" json:"id"`
	Type              NotificationType `db:"type" json:"type"`
	Title             string           `db:"title" json:"title"`
	Message           string           `db:"message" json:"message"`
	TargetOrgID       string           `db:"target_org_id" json:"targetOrgId,omitempty"`
	RelatedEntityType string           `db:"related_entity_type" json:"relatedEntityType,omitempty"`
	RelatedEntityID   string           `db:"related_entity_id" json:"relatedEntityId,omitempty"`
	IsRead            bool             `db:"is_read" json:"isRead"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
}

// AuditEntry is write-only from the service's perspective.
type AuditEntry struct {
	ID         string    `db:"id" json:"id"`
	ActorOrgID string    `db:"actor_org_id" json:"actorOrgId"`
	Action     string    `db:"action" json:"action"`
	Detail     string    `db:"detail" json:"detail"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
