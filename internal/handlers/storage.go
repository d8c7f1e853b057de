package handlers

import (
	"context"

	"medmarket/db"
	"medmarket/models"
)

type StorageInterface interface {
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)

	CreateRequest(ctx context.Context, r *models.Request) error
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	GetOpenRequests(ctx context.Context, limit, offset int) ([]models.Request, error)
	GetOrgRequests(ctx context.Context, orgID string, limit, offset int) ([]models.Request, error)
	CancelRequest(ctx context.Context, requestID, callerOrgID string) (*db.CancelResult, error)

	SubmitBid(ctx context.Context, b *models.Bid) (*models.Request, error)
	GetBid(ctx context.Context, id string) (*models.Bid, error)
	GetBidsForRequest(ctx context.Context, requestID string, limit, offset int) ([]models.Bid, error)
	GetOrgBids(ctx context.Context, orgID string, limit, offset int) ([]models.Bid, error)
	AcceptBid(ctx context.Context, bidID, callerOrgID string) (*db.AcceptResult, error)

	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	GetOrgTransactions(ctx context.Context, orgID string, limit, offset int) ([]models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, next models.TransactionStatus, callerOrgID string) (*models.Transaction, error)
	MarkTransactionPaid(ctx context.Context, id, callerOrgID string) (*models.Transaction, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	GetOrgNotifications(ctx context.Context, orgID string, limit, offset int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, orgID string) (*models.Notification, error)

	CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error
}
