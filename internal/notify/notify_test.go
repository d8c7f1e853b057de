package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medmarket/internal/notify"
	"medmarket/models"
)

type memStore struct {
	saved []models.Notification
}

func (m *memStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.saved = append(m.saved, *n)
	return nil
}

func TestPublishPersistsNotification(t *testing.T) {
	store := &memStore{}
	n := notify.New(store, "", zap.NewNop())

	n.Publish(context.Background(), notify.Event{
		Type:        models.NotifyNewBid,
		Title:       "New bid received",
		Message:     "SUPP-KD91 bid on your request",
		TargetOrgID: "org-1",
		RelatedType: "bid",
		RelatedID:   "bid-1",
	})

	require.Len(t, store.saved, 1)
	require.Equal(t, models.NotifyNewBid, store.saved[0].Type)
	require.Equal(t, "org-1", store.saved[0].TargetOrgID)
	require.Equal(t, "bid", store.saved[0].RelatedEntityType)
	require.False(t, store.saved[0].IsRead)
}

func TestPublishDeliversWebhook(t *testing.T) {
	received := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := notify.New(&memStore{}, srv.URL, zap.NewNop())
	n.Publish(context.Background(), notify.Event{
		Type:        models.NotifyBidAccepted,
		Title:       "Bid accepted",
		Message:     "Your bid won",
		TargetOrgID: "org-2",
	})

	select {
	case payload := <-received:
		require.Equal(t, "BID_ACCEPTED", payload["type"])
		require.Equal(t, "org-2", payload["targetOrgId"])
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}
