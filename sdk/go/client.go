package piedmontsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Piedmont scheduler API client.
type Client struct {
	BaseURL     string
	BasePath    string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  10 * time.Second,
	}
}

// Order represents the API order model (partial).
type Order struct {
	ID                  string `json:"id"`
	WorkOrder           string `json:"work_order"`
	PartNumber          string `json:"part_number"`
	Quantity            int    `json:"quantity"`
	RoutingID           string `json:"routing_id,omitempty"`
	StartDate           string `json:"start_date,omitempty"`
	DueDate             string `json:"due_date,omitempty"`
	EstimatedFinishDate string `json:"estimated_finish_date,omitempty"`
	Status              string `json:"status"`
	StatusLabel         string `json:"status_label"`
	PartStatus          string `json:"part_status"`
	IsLate              bool   `json:"is_late"`
}

// NewOrder is the body of an order creation.
type NewOrder struct {
	WorkOrder       string `json:"work_order"`
	PartNumber      string `json:"part_number"`
	PartDescription string `json:"part_description,omitempty"`
	Quantity        int    `json:"quantity"`
	RoutingID       string `json:"routing_id,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	DueDate         string `json:"due_date,omitempty"`
}

// Schedule is the projected resource timeline.
type Schedule struct {
	Resources []Resource `json:"resources"`
	Events    []Event    `json:"events"`
}

// Resource is one timeline row.
type Resource struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Title    string `json:"title"`
	Status   string `json:"status,omitempty"`
	Color    string `json:"color,omitempty"`
}

// Event is one timeline bar.
type Event struct {
	ID            string     `json:"id"`
	ResourceID    string     `json:"resourceId"`
	Title         string     `json:"title"`
	Start         string     `json:"start"`
	End           string     `json:"end"`
	Color         string     `json:"color,omitempty"`
	ExtendedProps EventProps `json:"extendedProps"`
}

// EventProps carries the bar flags.
type EventProps struct {
	IsSummary    bool   `json:"isSummary"`
	OrderID      string `json:"orderId"`
	StepNumber   int    `json:"stepNumber,omitempty"`
	IsDelayed    bool   `json:"isDelayed"`
	DelayMinutes int    `json:"delayMinutes,omitempty"`
	IsCompleted  bool   `json:"isCompleted"`
	Status       string `json:"status"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Schedule fetches the projected timeline.
func (c *Client) Schedule(ctx context.Context) (Schedule, error) {
	var resp Schedule
	err := c.do(ctx, http.MethodGet, "schedule", nil, &resp)
	return resp, err
}

// AddDelay appends minutes to one step of an order.
func (c *Client) AddDelay(ctx context.Context, orderID string, stepNumber, minutes int, reason string) error {
	body := map[string]any{
		"orderId":    orderID,
		"stepNumber": stepNumber,
		"minutes":    minutes,
		"reason":     reason,
	}
	return c.do(ctx, http.MethodPost, "schedule/delays", body, nil)
}

// UpdateStatus sets the status of an order.
func (c *Client) UpdateStatus(ctx context.Context, orderID, status string) error {
	body := map[string]any{
		"orderId": orderID,
		"status":  status,
	}
	return c.do(ctx, http.MethodPost, "schedule/status", body, nil)
}

// CreateOrder creates an order, compiling it when a routing is given.
func (c *Client) CreateOrder(ctx context.Context, o NewOrder) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, "orders", o, &resp)
	return resp, err
}

// Orders lists orders, optionally filtered by status.
func (c *Client) Orders(ctx context.Context, status string) ([]Order, error) {
	endpoint := "orders"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Order
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Order fetches one order.
func (c *Client) Order(ctx context.Context, id string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodGet, "orders/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
