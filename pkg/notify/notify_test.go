package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPGatewaySenderPostsMessage(t *testing.T) {
	var received gatewayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-42","status":"queued"}`))
	}))
	defer srv.Close()

	sender := NewHTTPGatewaySender(srv.URL, "secret", "SCHOOL", zap.NewNop())
	ref, err := sender.SendSMS(context.Background(), SMS{To: []string{"+254700000001"}, Message: "Fees due"})
	require.NoError(t, err)
	assert.Equal(t, "msg-42", ref)
	assert.Equal(t, "SCHOOL", received.From)
	assert.Equal(t, []string{"+254700000001"}, received.Recipients)
}

func TestHTTPGatewaySenderReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid recipient"}`))
	}))
	defer srv.Close()

	sender := NewHTTPGatewaySender(srv.URL, "", "SCHOOL", nil)
	_, err := sender.SendSMS(context.Background(), SMS{To: []string{"bad"}, Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "edutenant/school-1/notifications", Topic("edutenant", "school-1", "notifications"))
	assert.Equal(t, "school-1/notifications", Topic("", "school-1", "notifications"))
}

func TestLogSendersNeverFail(t *testing.T) {
	_, err := NewLogEmailSender(nil).SendEmail(context.Background(), Email{To: []string{"a@example.com"}})
	assert.NoError(t, err)
	_, err = NewLogSMSSender(nil).SendSMS(context.Background(), SMS{To: []string{"1"}})
	assert.NoError(t, err)
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "s", "c", nil))
}

func TestSendgridPrepare(t *testing.T) {
	sender := NewSendgridSender("key", "no-reply@example.com", "School", nil)
	m := sender.prepare(Email{To: []string{"a@example.com", "b@example.com"}, Subject: "Hello", Body: "Body"})
	require.Len(t, m.Personalizations, 1)
	assert.Len(t, m.Personalizations[0].To, 2)
	assert.Equal(t, "Hello", m.Personalizations[0].Subject)
	assert.Equal(t, "no-reply@example.com", m.From.Address)
}
