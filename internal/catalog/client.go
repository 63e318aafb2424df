package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

// APIError is a non-2xx answer from the ticketing API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog API returned status %d: %s", e.StatusCode, e.Message)
}

// ErrUnreachable wraps network failures talking to the ticketing API.
var ErrUnreachable = errors.New("catalog API unreachable")

// IsTransport reports whether err is a network failure or a non-success status,
// i.e. something the user can retry.
func IsTransport(err error) bool {
	var apiErr *APIError
	return errors.Is(err, ErrUnreachable) || errors.As(err, &apiErr)
}

// Client talks JSON over HTTP to the external ticketing API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logger.Logger
}

func NewClient(baseURL string, client *http.Client, log *logger.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  log,
	}
}

// WithToken returns a copy of the client that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := c.do(ctx, http.MethodGet, "/events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetEventsByIDs fetches all requested events in one call. Ids the API does not know
// are simply absent from the result.
func (c *Client) GetEventsByIDs(ctx context.Context, ids []int) ([]models.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	path := "/events?ids=" + strings.Join(parts, ",")

	var events []models.Event
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) GetEvent(ctx context.Context, id int) (*models.Event, error) {
	var event models.Event
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/events/%d", id), nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateTicket(ctx context.Context, req models.CreateTicketRequest) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/tickets", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path
	c.logger.Debug("CATALOG", fmt.Sprintf("%s %s", method, endpoint))

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		c.logger.Error("CATALOG", fmt.Sprintf("Failed to create request: %v", err))
		return fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("CATALOG", fmt.Sprintf("%s %s failed: %v", method, path, err))
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("CATALOG", fmt.Sprintf("Failed to close response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
		c.logger.Error("CATALOG", fmt.Sprintf("%s %s: %v", method, path, apiErr))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error("CATALOG", fmt.Sprintf("Failed to decode %s %s response: %v", method, path, err))
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}

// readMessage pulls the "message" field out of an error body, if there is one.
func readMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// FilterByCategory keeps events of the given category; 0 keeps everything.
func FilterByCategory(events []models.Event, categoryID int) []models.Event {
	if categoryID == 0 {
		return events
	}
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.CategoryID == categoryID {
			out = append(out, e)
		}
	}
	return out
}
