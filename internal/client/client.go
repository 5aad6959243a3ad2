// Package client is the HTTP client for the ingestion API, used by the
// siemctl command.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/schema"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// IngestResult is the response envelope of the events endpoint.
type IngestResult struct {
	Results  []models.EventOutcome `json:"results"`
	Accepted int                   `json:"accepted"`
	Rejected int                   `json:"rejected"`
}

// EventQuery narrows an events listing.
type EventQuery struct {
	SourceID string
	SeqMin   uint64
	SeqMax   uint64
	Limit    int
	Page     int
}

func (c *Client) RegisterSource(name string, sc schema.Schema) (*models.Source, error) {
	var src models.Source
	err := c.post("/api/v1/sources", map[string]interface{}{
		"name":   name,
		"schema": sc,
	}, &src)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (c *Client) ListSources() ([]models.Source, error) {
	var resp struct {
		Sources []models.Source `json:"sources"`
	}
	if err := c.get("/api/v1/sources", &resp); err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

func (c *Client) DeactivateSource(id string) error {
	return c.post("/api/v1/sources/"+id+"/deactivate", nil, nil)
}

func (c *Client) UpdateSourceSchema(id string, sc schema.Schema) (*models.Source, error) {
	var src models.Source
	err := c.do(http.MethodPut, "/api/v1/sources/"+id+"/schema",
		map[string]interface{}{"schema": sc}, &src)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// SendEvents posts a batch and returns per-event outcomes. Partial
// rejection is not an error at this level; callers inspect the outcomes.
func (c *Client) SendEvents(events []models.RawEvent) (*IngestResult, error) {
	var result IngestResult
	if err := c.post("/api/v1/events", events, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) QueryEvents(q EventQuery) ([]models.CanonicalEvent, error) {
	params := url.Values{}
	if q.SourceID != "" {
		params.Set("source_id", q.SourceID)
	}
	if q.SeqMin > 0 {
		params.Set("seq_min", strconv.FormatUint(q.SeqMin, 10))
	}
	if q.SeqMax > 0 {
		params.Set("seq_max", strconv.FormatUint(q.SeqMax, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}

	path := "/api/v1/events"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Events []models.CanonicalEvent `json:"events"`
	}
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) GetEvent(id string) (*models.CanonicalEvent, error) {
	var ev models.CanonicalEvent
	if err := c.get("/api/v1/events/"+id, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) get(path string, out interface{}) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *Client) post(path string, body, out interface{}) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
