package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"labbroker/pkg/model"
)

// APIError is a non-2xx answer from the broker.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// ShiftOutcome mirrors the negotiation response body.
type ShiftOutcome struct {
	ResourceName string                     `json:"resource_name,omitempty"`
	Blocking     *model.Booking             `json:"blocking_booking,omitempty"`
	Proposal     *model.Proposal            `json:"proposal,omitempty"`
	Decision     *model.Decision            `json:"decision,omitempty"`
	Shifted      *model.Booking             `json:"shifted_booking,omitempty"`
	Results      []model.AvailabilityResult `json:"results"`
}

// BrokerClient is a typed client for the broker's /api/v1 surface.
type BrokerClient struct {
	httpClient *HttpClient
}

func NewBrokerClient(baseURL string, identity Identity) *BrokerClient {
	c := NewHttpClient(baseURL)
	c.Identity = identity
	return &BrokerClient{httpClient: c}
}

func (c *BrokerClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *BrokerClient) Availability(ctx context.Context, req model.StructuredRequest) ([]model.AvailabilityResult, error) {
	var results []model.AvailabilityResult
	err := c.call(ctx, http.MethodPost, "/api/v1/availability", req, nil, &results)
	return results, err
}

func (c *BrokerClient) Query(ctx context.Context, text string) ([]model.AvailabilityResult, error) {
	var results []model.AvailabilityResult
	err := c.call(ctx, http.MethodPost, "/api/v1/availability/query", map[string]string{"text": text}, nil, &results)
	return results, err
}

func (c *BrokerClient) Negotiate(ctx context.Context, req model.ShiftRequest) (*ShiftOutcome, error) {
	var outcome ShiftOutcome
	if err := c.call(ctx, http.MethodPost, "/api/v1/negotiations", req, nil, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// Book commits a booking. A non-empty idempotencyKey makes retries safe.
func (c *BrokerClient) Book(ctx context.Context, req model.BookingRequest, idempotencyKey string) (*model.Booking, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var booking model.Booking
	if err := c.call(ctx, http.MethodPost, "/api/v1/bookings", req, headers, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *BrokerClient) UpdateStudentCount(ctx context.Context, bookingID string, studentCount int) (*model.Booking, error) {
	var booking model.Booking
	body := map[string]int{"student_count": studentCount}
	if err := c.call(ctx, http.MethodPatch, "/api/v1/bookings/id/"+url.PathEscape(bookingID), body, nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *BrokerClient) Cancel(ctx context.Context, bookingID string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/bookings/id/"+url.PathEscape(bookingID), nil, nil, nil)
}

// Schedule fetches [from, to). Zero bounds ask for the current week.
func (c *BrokerClient) Schedule(ctx context.Context, from, to time.Time) (model.Schedule, error) {
	path := "/api/v1/schedule"
	if !from.IsZero() || !to.IsZero() {
		q := url.Values{}
		q.Set("from", from.UTC().Format(time.RFC3339))
		q.Set("to", to.UTC().Format(time.RFC3339))
		path += "?" + q.Encode()
	}
	var schedule model.Schedule
	err := c.call(ctx, http.MethodGet, path, nil, nil, &schedule)
	return schedule, err
}

func (c *BrokerClient) Resources(ctx context.Context) ([]*model.Resource, error) {
	var resources []*model.Resource
	err := c.call(ctx, http.MethodGet, "/api/v1/resources", nil, nil, &resources)
	return resources, err
}

func (c *BrokerClient) CreateResource(ctx context.Context, resource model.Resource) (*model.Resource, error) {
	var created model.Resource
	if err := c.call(ctx, http.MethodPost, "/api/v1/resources", resource, nil, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *BrokerClient) DeleteResource(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/resources/id/"+url.PathEscape(id), nil, nil, nil)
}

func (c *BrokerClient) call(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	resp, err := c.httpClient.request(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Code string `json:"code"`
		}
		_ = resp.DecodeJSON(&errResp)
		return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: GetErrorMessage(resp)}
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := resp.DecodeJSON(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}
