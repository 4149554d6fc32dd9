package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload(eventID string) Payload {
	return Payload{
		EventID:  eventID,
		Type:     "care.suggestion_created",
		TS:       "2026-07-30T00:00:00Z",
		TenantID: "tenant-1",
		Entity:   PayloadEntity{Type: "lead", ID: "lead-1"},
		Body:     map[string]any{"suggestion_id": "sug-1"},
	}
}

func TestTriggerCareWorkflow_SuccessOnFirstAttempt(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "evt-1", r.Header.Get(headerEventID))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(5, nil)
	result := c.TriggerCareWorkflow(context.Background(), Request{
		URL:     srv.URL,
		Payload: testPayload("evt-1"),
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestTriggerCareWorkflow_SignsBodyWhenSecretProvided(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		mac := hmac.New(sha256.New, []byte("s3cret"))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))
		assert.Equal(t, expected, r.Header.Get(headerSignature))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(5, nil)
	result := c.TriggerCareWorkflow(context.Background(), Request{
		URL:     srv.URL,
		Secret:  "s3cret",
		Payload: testPayload("evt-2"),
	})

	assert.True(t, result.Success)
}

func TestTriggerCareWorkflow_RetriesOnFailureThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(5, nil)
	result := c.TriggerCareWorkflow(context.Background(), Request{
		URL:     srv.URL,
		Payload: testPayload("evt-3"),
		Retries: 2,
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
}

func TestTriggerCareWorkflow_ExhaustsRetriesReturnsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(5, nil)
	result := c.TriggerCareWorkflow(context.Background(), Request{
		URL:     srv.URL,
		Payload: testPayload("evt-4"),
		Retries: 1,
	})

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.NotEmpty(t, result.Error)
}

func TestTriggerCareWorkflow_TimeoutCountsAsFailedAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(5, nil)
	result := c.TriggerCareWorkflow(context.Background(), Request{
		URL:       srv.URL,
		Payload:   testPayload("evt-5"),
		TimeoutMS: 5,
		Retries:   0,
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
}

func TestTriggerCareWorkflowBatch_CapsAcceptedPayloadsAndSkipsRemainder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payloads := make([]Payload, 5)
	for i := range payloads {
		payloads[i] = testPayload("evt-batch")
	}

	c := NewClient(5, nil)
	result := c.TriggerCareWorkflowBatch(context.Background(), BatchRequest{
		URL:       srv.URL,
		Payloads:  payloads,
		BatchSize: 3,
	})

	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Failed)
}

func TestTriggerCareWorkflowBatch_ReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(5, nil)
	result := c.TriggerCareWorkflowBatch(context.Background(), BatchRequest{
		URL:      srv.URL,
		Payloads: []Payload{testPayload("evt-fail-1"), testPayload("evt-fail-2")},
		Retries:  0,
	})

	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors, 2)
}

func TestTriggerCareWorkflow_UnreachableURLNeverErrorsJustFails(t *testing.T) {
	c := NewClient(5, nil)
	result := c.TriggerCareWorkflow(context.Background(), Request{
		URL:     "http://127.0.0.1:0",
		Payload: testPayload("evt-6"),
		Retries: 0,
	})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestPayload_MarshalsExpectedWireShape(t *testing.T) {
	p := testPayload("evt-7")
	body, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "evt-7", decoded["event_id"])
	assert.Equal(t, "care.suggestion_created", decoded["type"])
	assert.Equal(t, "tenant-1", decoded["tenant_id"])
	entity, ok := decoded["entity"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "lead", entity["type"])
}
