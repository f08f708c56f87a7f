package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/raczniakservices/HVAC/internal/dto"
)

const defaultTimeout = 15 * time.Second

// Client is the slice of the lead API a dashboard session needs.
type Client interface {
	ListEvents(ctx context.Context, limit int) ([]dto.EventResponse, error)
	GetEvent(ctx context.Context, id int64) (*dto.EventResponse, error)
	SetOwner(ctx context.Context, id int64, owner *string) (*dto.EventResponse, error)
	SetNextStep(ctx context.Context, id int64, step *string) (*dto.EventResponse, error)
	SetResult(ctx context.Context, id int64, result *string) (*dto.EventResponse, error)
	DeleteEvent(ctx context.Context, id int64, confirmUnresolved bool) error
	ClearAll(ctx context.Context, confirmUnresolved bool) (int64, error)
	Summary(ctx context.Context) (*dto.SummaryResponse, error)
	Config(ctx context.Context) (*dto.ConfigResponse, error)
}

// APIError is a non-2xx answer from the lead API.
type APIError struct {
	StatusCode      int
	Code            string
	Message         string
	UnresolvedCount int64
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.StatusCode)
}

// IsUnresolved reports whether err is a refused delete of unresolved leads
// and returns how many were unresolved.
func IsUnresolved(err error) (int64, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return apiErr.UnresolvedCount, true
	}
	return 0, false
}

// IsNotFound reports whether err is a 404 from the lead API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// HTTPClient talks to the lead API over HTTP.
type HTTPClient struct {
	baseURL     string
	operatorKey string
	http        *http.Client
}

// NewHTTPClient creates a client for the API at baseURL. A nil httpClient
// gets a default with a request timeout.
func NewHTTPClient(baseURL, operatorKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		operatorKey: operatorKey,
		http:        httpClient,
	}
}

func (c *HTTPClient) ListEvents(ctx context.Context, limit int) ([]dto.EventResponse, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var events []dto.EventResponse
	if err := c.do(ctx, http.MethodGet, "/events?"+q.Encode(), nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *HTTPClient) GetEvent(ctx context.Context, id int64) (*dto.EventResponse, error) {
	var event dto.EventResponse
	if err := c.do(ctx, http.MethodGet, "/events/"+strconv.FormatInt(id, 10), nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *HTTPClient) SetOwner(ctx context.Context, id int64, owner *string) (*dto.EventResponse, error) {
	return c.mutate(ctx, "/owner", map[string]interface{}{"event_id": id, "owner": owner})
}

func (c *HTTPClient) SetNextStep(ctx context.Context, id int64, step *string) (*dto.EventResponse, error) {
	return c.mutate(ctx, "/next_step", map[string]interface{}{"event_id": id, "next_step": step})
}

func (c *HTTPClient) SetResult(ctx context.Context, id int64, result *string) (*dto.EventResponse, error) {
	return c.mutate(ctx, "/result", map[string]interface{}{"event_id": id, "result": result})
}

func (c *HTTPClient) mutate(ctx context.Context, path string, body map[string]interface{}) (*dto.EventResponse, error) {
	var event dto.EventResponse
	if err := c.do(ctx, http.MethodPost, path, body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *HTTPClient) DeleteEvent(ctx context.Context, id int64, confirmUnresolved bool) error {
	path := "/events/" + strconv.FormatInt(id, 10) + confirmQuery(confirmUnresolved)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) ClearAll(ctx context.Context, confirmUnresolved bool) (int64, error) {
	var ok dto.OkResponse
	if err := c.do(ctx, http.MethodPost, "/clear_all"+confirmQuery(confirmUnresolved), nil, &ok); err != nil {
		return 0, err
	}
	if ok.Deleted == nil {
		return 0, nil
	}
	return *ok.Deleted, nil
}

func (c *HTTPClient) Summary(ctx context.Context) (*dto.SummaryResponse, error) {
	var summary dto.SummaryResponse
	if err := c.do(ctx, http.MethodGet, "/summary", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *HTTPClient) Config(ctx context.Context) (*dto.ConfigResponse, error) {
	var cfg dto.ConfigResponse
	if err := c.do(ctx, http.MethodGet, "/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func confirmQuery(confirm bool) string {
	if confirm {
		return "?confirm_unresolved=true"
	}
	return ""
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.operatorKey != "" {
		req.Header.Set("x-operator-key", c.operatorKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}

	var body dto.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		if body.UnresolvedCount != nil {
			apiErr.UnresolvedCount = *body.UnresolvedCount
		}
	}
	return apiErr
}
