package subscription_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

const testWebhookSecret = "whsec_test_secret"

func testCatalog(t *testing.T) *subscription.Catalog {
	t.Helper()
	c, err := subscription.NewCatalog("basico", 14,
		subscription.Plan{ID: "basico", Name: "Básico", PriceID: "price_basico", ProductIDs: []string{"prod_basico"}},
		subscription.Plan{ID: "profissional", Name: "Profissional", PriceID: "price_pro", ProductIDs: []string{"prod_pro"}},
	)
	require.NoError(t, err)
	return c
}

// directory is an in-memory subscription.Directory.
type directory struct {
	mu    sync.Mutex
	users map[string]uuid.UUID
	err   error
}

func newDirectory() *directory { return &directory{users: map[string]uuid.UUID{}} }

func (d *directory) add(email string) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	d.users[strings.ToLower(email)] = id
	return id
}

func (d *directory) LookupByEmail(_ context.Context, email string) (uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return uuid.Nil, d.err
	}
	id, ok := d.users[strings.ToLower(email)]
	if !ok {
		return uuid.Nil, subscription.ErrUserNotFound
	}
	return id, nil
}

func (d *directory) EmailFor(_ context.Context, userID uuid.UUID) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for email, id := range d.users {
		if id == userID {
			return email, nil
		}
	}
	return "", subscription.ErrUserNotFound
}

// signedEvent builds a Stripe event envelope and signs it with the test secret.
func signedEvent(t *testing.T, id, eventType string, created time.Time, object any) ([]byte, string) {
	t.Helper()
	obj, err := json.Marshal(object)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     created.Unix(),
		"api_version": "2025-03-31.basil",
		"data":        map[string]json.RawMessage{"object": obj},
	})
	require.NoError(t, err)

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func checkoutObject(email, customerID, subID string) map[string]any {
	return map[string]any{
		"id":               "cs_test_1",
		"object":           "checkout.session",
		"mode":             "subscription",
		"customer":         customerID,
		"subscription":     subID,
		"customer_email":   nil,
		"customer_details": map[string]any{"email": email},
	}
}

func subscriptionObject(subID, customerID, status, productID string, start, end time.Time) map[string]any {
	return map[string]any{
		"id":                   subID,
		"object":               "subscription",
		"customer":             customerID,
		"status":               status,
		"cancel_at_period_end": false,
		"items": map[string]any{
			"data": []map[string]any{{
				"current_period_start": start.Unix(),
				"current_period_end":   end.Unix(),
				"price":                map[string]any{"id": "price_x", "product": productID},
			}},
		},
	}
}

func invoiceObject(subID, customerID string) map[string]any {
	return map[string]any{
		"id":       "in_test_1",
		"object":   "invoice",
		"customer": customerID,
		"parent": map[string]any{
			"subscription_details": map[string]any{"subscription": subID},
		},
	}
}

func ptr(t time.Time) *time.Time { return &t }
