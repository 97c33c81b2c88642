package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateFundingSession(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(FundingSession{
			ID:          "cs_test_123",
			URL:         "https://pay.example.com/cs_test_123",
			Status:      SessionStatusOpen,
			AmountMinor: 283005,
			Currency:    "usd",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", 5*time.Second)
	session, err := client.CreateFundingSession(context.Background(), CreateFundingSessionInput{
		AmountMinor: 283005,
		Currency:    "usd",
		Metadata:    map[string]string{"contract_id": "abc"},
	})

	assert.NoError(t, err)
	assert.Equal(t, "cs_test_123", session.ID)
	assert.Equal(t, SessionStatusOpen, session.Status)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, float64(283005), gotBody["amount"])
}

func TestClient_CreateFundingSession_InvalidAmount(t *testing.T) {
	client := NewClient("http://localhost:9100", "sk_test", time.Second)
	_, err := client.CreateFundingSession(context.Background(), CreateFundingSessionInput{AmountMinor: 0})
	assert.Error(t, err)
}

func TestClient_TransferFunds_ProcessorDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "insufficient_capabilities",
				"message": "account cannot receive transfers",
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", 5*time.Second)
	_, err := client.TransferFunds(context.Background(), TransferInput{
		AmountMinor: 75000,
		Currency:    "usd",
		Destination: "acct_1",
	})

	assert.Error(t, err)
	assert.True(t, IsProcessorError(err))

	procErr := err.(*ProcessorError)
	assert.Equal(t, http.StatusPaymentRequired, procErr.StatusCode)
	assert.Equal(t, "insufficient_capabilities", procErr.Code)
	assert.Contains(t, procErr.Message, "cannot receive transfers")
}

func TestClient_GetConnectedAccountStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/accounts/acct_42/status", r.URL.Path)
		json.NewEncoder(w).Encode(AccountStatus{
			AccountID:                "acct_42",
			TransfersActive:          false,
			PayoutsEnabled:           false,
			RequirementsCurrentlyDue: []string{"individual.id_number"},
			RequirementsPastDue:      []string{"external_account"},
			DisabledReason:           "requirements.past_due",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", 5*time.Second)
	status, err := client.GetConnectedAccountStatus(context.Background(), "acct_42")

	assert.NoError(t, err)
	assert.False(t, status.TransfersActive)
	assert.Equal(t, []string{"individual.id_number"}, status.RequirementsCurrentlyDue)
	assert.Equal(t, "requirements.past_due", status.DisabledReason)
}

func TestClient_GetFundingSession_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", 5*time.Second)
	_, err := client.GetFundingSession(context.Background(), "cs_missing")

	assert.Error(t, err)
	assert.True(t, IsProcessorError(err))
}
