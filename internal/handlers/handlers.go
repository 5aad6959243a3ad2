// Package handlers exposes the ingestion pipeline over HTTP. Method and
// path routing happens in internal/server; handlers only parse, delegate
// to the service, and shape responses.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/httputil"
	"github.com/gregoryhugaerts/mini-siem/internal/logging"
	"github.com/gregoryhugaerts/mini-siem/internal/metrics"
	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/registry"
	"github.com/gregoryhugaerts/mini-siem/internal/schema"
	"github.com/gregoryhugaerts/mini-siem/internal/service"
	"github.com/gregoryhugaerts/mini-siem/internal/store"
)

const maxBodyBytes = 10 << 20 // 10 MiB per request

type Handler struct {
	service *service.IngestService
	logger  *logging.Logger
}

func New(svc *service.IngestService, logger *logging.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

type registerSourceRequest struct {
	Name   string        `json:"name"`
	Schema schema.Schema `json:"schema"`
}

type updateSchemaRequest struct {
	Schema schema.Schema `json:"schema"`
}

// RegisterSource handles POST /api/v1/sources.
func (h *Handler) RegisterSource(w http.ResponseWriter, r *http.Request) {
	var req registerSourceRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	src, err := h.service.RegisterSource(r.Context(), req.Name, req.Schema)
	if err != nil {
		if errors.Is(err, registry.ErrDuplicateSource) {
			httputil.WriteError(w, http.StatusConflict, "DuplicateSourceError: an active source named "+req.Name+" already exists")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, src)
}

// ListSources handles GET /api/v1/sources.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.ListSources(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list sources failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

// GetSource handles GET /api/v1/sources/{id}. Deactivated sources remain
// visible here.
func (h *Handler) GetSource(w http.ResponseWriter, r *http.Request) {
	src, err := h.service.GetSource(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, registry.ErrUnknownSource) {
			httputil.WriteError(w, http.StatusNotFound, "UnknownSourceError: no such source")
			return
		}
		h.logger.ErrorContext(r.Context(), "get source failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load source")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, src)
}

// UpdateSourceSchema handles PUT /api/v1/sources/{id}/schema.
func (h *Handler) UpdateSourceSchema(w http.ResponseWriter, r *http.Request) {
	var req updateSchemaRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	src, err := h.service.UpdateSourceSchema(r.Context(), r.PathValue("id"), req.Schema)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownSource):
			httputil.WriteError(w, http.StatusNotFound, "UnknownSourceError: no such source")
		case errors.Is(err, registry.ErrSourceInactive):
			httputil.WriteError(w, http.StatusConflict, "SourceInactiveError: source has been deactivated")
		default:
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, src)
}

// DeactivateSource handles POST /api/v1/sources/{id}/deactivate.
func (h *Handler) DeactivateSource(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeactivateSource(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, registry.ErrUnknownSource) {
			httputil.WriteError(w, http.StatusNotFound, "UnknownSourceError: no such source")
			return
		}
		h.logger.ErrorContext(r.Context(), "deactivate source failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to deactivate source")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IngestEvents handles POST /api/v1/events. The body is either a single
// event object or an array of events; the response always carries one
// result per submitted event, in order. Accepted means buffered; the
// durable commit follows asynchronously.
func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	metrics.EventBytesTotal.Add(float64(len(body)))

	raws, err := parseEvents(body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(raws) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "no events in request")
		return
	}

	outcomes := h.service.IngestBatch(r.Context(), raws)

	accepted := 0
	bufferFull := 0
	for _, o := range outcomes {
		if o.Accepted {
			accepted++
		} else if strings.HasPrefix(o.Error, "BufferFullError") {
			bufferFull++
		}
	}

	status := http.StatusOK
	switch {
	case accepted == len(outcomes):
		// all accepted
	case bufferFull == len(outcomes):
		// Nothing got through and every rejection is retryable.
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", "1")
	default:
		status = http.StatusMultiStatus
	}

	httputil.WriteJSON(w, status, map[string]interface{}{
		"results":  outcomes,
		"accepted": accepted,
		"rejected": len(outcomes) - accepted,
	})
}

// QueryEvents handles GET /api/v1/events.
func (h *Handler) QueryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := httputil.ParsePagination(r, 100, 1000)

	f := store.QueryFilter{
		SourceID: q.Get("source_id"),
		SeqMin:   httputil.ParseUintParam(q.Get("seq_min")),
		SeqMax:   httputil.ParseUintParam(q.Get("seq_max")),
		Limit:    p.Limit,
		Offset:   p.Offset(),
	}
	var err error
	if f.From, err = parseTimeParam(q.Get("from")); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	if f.To, err = parseTimeParam(q.Get("to")); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	events, err := h.service.QueryEvents(r.Context(), f)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "query events failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query events")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events":     events,
		"pagination": p,
	})
}

// GetEvent handles GET /api/v1/events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.service.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get event failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ev)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz with a snapshot of pipeline activity.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ready",
		"buffer_depth": h.service.BufferDepth(),
		"stats":        h.service.Stats(),
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseEvents accepts either a single JSON object or a JSON array of
// event envelopes.
func parseEvents(body []byte) ([]models.RawEvent, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raws []models.RawEvent
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	}

	var raw models.RawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return []models.RawEvent{raw}, nil
}

func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
