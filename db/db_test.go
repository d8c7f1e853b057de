package db_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medmarket/db"
	"medmarket/db/migrations"
	"medmarket/internal/masking"
	"medmarket/models"
)

// These tests need a real Postgres because the acceptance cascade lives in
// SQL transactions with row locks. They skip unless POSTGRES_CONN is set.
func newTestStorage(t *testing.T) *db.Storage {
	t.Helper()
	dsn := os.Getenv("POSTGRES_CONN")
	if dsn == "" {
		t.Skip("POSTGRES_CONN is not set")
	}
	conn, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrations.Run(conn.DB, "../migrations", zap.NewNop()))
	return db.NewStorage(conn)
}

func seedOrg(t *testing.T, s *db.Storage, name string, typ models.OrgType) *models.Organization {
	t.Helper()
	o := &models.Organization{Name: name, Type: typ, Phone: "0911000000", Address: "Addis Ababa"}
	require.NoError(t, s.CreateOrganization(context.Background(), o))
	return o
}

func seedRequest(t *testing.T, s *db.Storage, buyer *models.Organization) *models.Request {
	t.Helper()
	r := &models.Request{
		BuyerHandle:  masking.Handle(masking.RoleBuyer),
		BuyerOrgID:   buyer.ID,
		MedicineName: "Amoxicillin 500mg",
		Quantity:     100,
		RequiredBy:   time.Now().AddDate(0, 0, 7),
	}
	require.NoError(t, s.CreateRequest(context.Background(), r))
	return r
}

func seedBid(t *testing.T, s *db.Storage, requestID string, supplier *models.Organization, price float64) *models.Bid {
	t.Helper()
	b := &models.Bid{
		RequestID:      requestID,
		SupplierHandle: masking.Handle(masking.RoleSupplier),
		SupplierOrgID:  supplier.ID,
		PricePerUnit:   price,
		DeliveryDays:   2,
	}
	_, err := s.SubmitBid(context.Background(), b)
	require.NoError(t, err)
	return b
}

func TestSubmitBidFlipsRequestStatus(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	buyer := seedOrg(t, s, "Flip Pharmacy", models.OrgPharmacy)
	supplier := seedOrg(t, s, "Flip Supplier", models.OrgSupplier)
	r := seedRequest(t, s, buyer)
	require.Equal(t, models.RequestOpen, r.Status)
	require.Equal(t, 0, r.BidsCount)

	first := &models.Bid{
		RequestID:      r.ID,
		SupplierHandle: masking.Handle(masking.RoleSupplier),
		SupplierOrgID:  supplier.ID,
		PricePerUnit:   4.5,
		DeliveryDays:   2,
	}
	parent, err := s.SubmitBid(ctx, first)
	require.NoError(t, err)
	require.Equal(t, models.RequestBidReceived, parent.Status)
	require.Equal(t, 1, parent.BidsCount)
	require.Equal(t, 450.0, first.TotalPrice)

	seedBid(t, s, r.ID, supplier, 4.0)
	got, err := s.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestBidReceived, got.Status)
	require.Equal(t, 2, got.BidsCount)
}

func TestAcceptBidCascade(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	buyer := seedOrg(t, s, "Cascade Pharmacy", models.OrgPharmacy)
	winnerOrg := seedOrg(t, s, "Winner Supplier", models.OrgSupplier)
	loser1 := seedOrg(t, s, "Loser One", models.OrgSupplier)
	loser2 := seedOrg(t, s, "Loser Two", models.OrgWholesaler)

	r := seedRequest(t, s, buyer)
	winner := seedBid(t, s, r.ID, winnerOrg, 4.5)
	b1 := seedBid(t, s, r.ID, loser1, 5.0)
	b2 := seedBid(t, s, r.ID, loser2, 5.5)

	res, err := s.AcceptBid(ctx, winner.ID, buyer.ID)
	require.NoError(t, err)

	require.Equal(t, r.ID, res.Transaction.RequestID)
	require.Equal(t, winner.ID, res.Transaction.BidID)
	require.Equal(t, 100, res.Transaction.Quantity)
	require.Equal(t, 450.0, res.Transaction.TotalAmount)
	require.Equal(t, models.TransactionAccepted, res.Transaction.Status)
	require.Equal(t, models.PaymentPending, res.Transaction.PaymentStatus)
	require.Equal(t, buyer.ID, res.Buyer.ID)
	require.Equal(t, winnerOrg.ID, res.Supplier.ID)
	require.ElementsMatch(t, []string{loser1.ID, loser2.ID}, res.RejectedSupplierIDs)

	got, err := s.GetBid(ctx, winner.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidAccepted, got.Status)
	for _, id := range []string{b1.ID, b2.ID} {
		sibling, err := s.GetBid(ctx, id)
		require.NoError(t, err)
		require.Equal(t, models.BidRejected, sibling.Status)
	}

	req, err := s.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestAccepted, req.Status)
}

func TestAcceptBidSecondAcceptConflicts(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	buyer := seedOrg(t, s, "Once Pharmacy", models.OrgPharmacy)
	s1 := seedOrg(t, s, "Once Supplier A", models.OrgSupplier)
	s2 := seedOrg(t, s, "Once Supplier B", models.OrgSupplier)

	r := seedRequest(t, s, buyer)
	winner := seedBid(t, s, r.ID, s1, 4.5)
	sibling := seedBid(t, s, r.ID, s2, 4.0)

	_, err := s.AcceptBid(ctx, winner.ID, buyer.ID)
	require.NoError(t, err)

	_, err = s.AcceptBid(ctx, sibling.ID, buyer.ID)
	require.ErrorIs(t, err, db.ErrConflict)

	_, err = s.AcceptBid(ctx, winner.ID, buyer.ID)
	require.ErrorIs(t, err, db.ErrConflict)
}

func TestAcceptBidNotOwnerForbidden(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	buyer := seedOrg(t, s, "Owner Pharmacy", models.OrgPharmacy)
	supplier := seedOrg(t, s, "Owner Supplier", models.OrgSupplier)
	r := seedRequest(t, s, buyer)
	b := seedBid(t, s, r.ID, supplier, 4.5)

	_, err := s.AcceptBid(ctx, b.ID, supplier.ID)
	require.ErrorIs(t, err, db.ErrForbidden)
}

func TestAcceptBidConcurrentOneWinner(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	buyer := seedOrg(t, s, "Race Pharmacy", models.OrgPharmacy)
	s1 := seedOrg(t, s, "Race Supplier A", models.OrgSupplier)
	s2 := seedOrg(t, s, "Race Supplier B", models.OrgSupplier)

	r := seedRequest(t, s, buyer)
	b1 := seedBid(t, s, r.ID, s1, 4.5)
	b2 := seedBid(t, s, r.ID, s2, 4.0)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []string{b1.ID, b2.ID} {
		wg.Add(1)
		go func(i int, bidID string) {
			defer wg.Done()
			_, errs[i] = s.AcceptBid(ctx, bidID, buyer.ID)
		}(i, id)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, db.ErrConflict)
			conflicts++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, conflicts)

	txns, err := s.GetOrgTransactions(ctx, buyer.ID, 100, 0)
	require.NoError(t, err)
	var forRequest int
	for _, txn := range txns {
		if txn.RequestID == r.ID {
			forRequest++
		}
	}
	require.Equal(t, 1, forRequest)
}

func TestCancelRequestExpiresBids(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	buyer := seedOrg(t, s, "Cancel Pharmacy", models.OrgPharmacy)
	s1 := seedOrg(t, s, "Cancel Supplier A", models.OrgSupplier)
	s2 := seedOrg(t, s, "Cancel Supplier B", models.OrgSupplier)

	r := seedRequest(t, s, buyer)
	b1 := seedBid(t, s, r.ID, s1, 4.5)
	b2 := seedBid(t, s, r.ID, s2, 4.0)

	res, err := s.CancelRequest(ctx, r.ID, buyer.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestCancelled, res.Request.Status)
	require.ElementsMatch(t, []string{s1.ID, s2.ID}, res.ExpiredSupplierIDs)

	for _, id := range []string{b1.ID, b2.ID} {
		expired, err := s.GetBid(ctx, id)
		require.NoError(t, err)
		require.Equal(t, models.BidExpired, expired.Status)
	}

	late := &models.Bid{
		RequestID:      r.ID,
		SupplierHandle: masking.Handle(masking.RoleSupplier),
		SupplierOrgID:  s1.ID,
		PricePerUnit:   3.0,
		DeliveryDays:   1,
	}
	_, err = s.SubmitBid(ctx, late)
	require.ErrorIs(t, err, db.ErrConflict)
}
