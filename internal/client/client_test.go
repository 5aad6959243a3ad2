package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/schema"
)

func TestRegisterSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sources", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "suricata", payload["name"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Source{
			ID: "src-1", Name: "suricata", SchemaVersion: 1,
		})
	}))
	defer server.Close()

	src, err := New(server.URL).RegisterSource("suricata", schema.Schema{
		Required: []schema.Field{{Name: "timestamp"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "src-1", src.ID)
	assert.Equal(t, 1, src.SchemaVersion)
}

func TestRegisterSourceConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "DuplicateSourceError: an active source named suricata already exists",
		})
	}))
	defer server.Close()

	_, err := New(server.URL).RegisterSource("suricata", schema.Schema{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DuplicateSourceError")
}

func TestSendEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/events", r.URL.Path)

		var raws []models.RawEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raws))
		require.Len(t, raws, 2)

		w.WriteHeader(http.StatusMultiStatus)
		json.NewEncoder(w).Encode(IngestResult{
			Results: []models.EventOutcome{
				{Accepted: true, EventID: "ev-1", Sequence: 1},
				{Accepted: false, Error: "SchemaValidationError: timestamp"},
			},
			Accepted: 1,
			Rejected: 1,
		})
	}))
	defer server.Close()

	result, err := New(server.URL).SendEvents([]models.RawEvent{
		{Source: "src-1", Data: map[string]interface{}{"timestamp": "t"}},
		{Source: "src-1", Data: map[string]interface{}{}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "ev-1", result.Results[0].EventID)
	assert.Equal(t, "SchemaValidationError: timestamp", result.Results[1].Error)
}

func TestQueryEventsBuildsParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "src-1", q.Get("source_id"))
		assert.Equal(t, "5", q.Get("seq_min"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "2", q.Get("page"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"events": []models.CanonicalEvent{{EventID: "ev-1", Sequence: 5}},
		})
	}))
	defer server.Close()

	events, err := New(server.URL).QueryEvents(EventQuery{
		SourceID: "src-1", SeqMin: 5, Limit: 50, Page: 2,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(5), events[0].Sequence)
}

func TestGetEventNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "event not found"})
	}))
	defer server.Close()

	_, err := New(server.URL).GetEvent("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event not found")
}

func TestDeactivateSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sources/src-1/deactivate", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	require.NoError(t, New(server.URL).DeactivateSource("src-1"))
}

func TestClientTimeoutConfigured(t *testing.T) {
	c := New("http://localhost:8080")
	assert.Equal(t, 30*time.Second, c.client.Timeout)
}
