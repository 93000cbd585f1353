// Package backend provides the API client for the parking backend's admin API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/config"
	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const apiPrefix = "/api/v1/admin"

// APIError is a non-2xx response from the backend. Message is the server's
// own message when it sent one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Observer is notified after every backend request. route is the templated
// path, not the concrete URL.
type Observer interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// HTTPClient is the transport-level client (timeouts, proxies). Auth is
	// layered on top of it.
	HTTPClient *http.Client
	Token      string
	OAuth      config.OAuthConfig
	Observer   Observer
}

// Client is the parking backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
}

// NewClient creates a new backend API client. OAuth client credentials take
// precedence over a static token; with neither, requests are unauthenticated.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	httpClient := base
	switch {
	case opts.OAuth.Enabled():
		cc := &clientcredentials.Config{
			ClientID:     opts.OAuth.ClientID,
			ClientSecret: opts.OAuth.ClientSecret,
			TokenURL:     opts.OAuth.TokenURL,
			Scopes:       opts.OAuth.Scopes,
		}
		httpClient = cc.Client(ctx)
		httpClient.Timeout = base.Timeout
	case opts.Token != "":
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(ctx, src)
		httpClient.Timeout = base.Timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		observer:   opts.Observer,
	}, nil
}

// doRequest performs an HTTP request against route, a templated path used for
// observation, expanded to path.
func (c *Client) doRequest(ctx context.Context, method, route, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, route, 0, time.Since(start))
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.observe(method, route, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, respBody)}
	}

	return respBody, nil
}

func (c *Client) observe(method, route string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, route, status, d)
	}
}

// errorMessage extracts the server's message from an error body: the "error"
// or "message" field of a JSON object, else the trimmed body, else the status text.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" && !strings.HasPrefix(msg, "{") {
		return msg
	}
	return http.StatusText(status)
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// planRequest sends the price as a plain JSON number.
type planRequest struct {
	Name         string         `json:"name"`
	Price        json.Number    `json:"price"`
	DurationDays int            `json:"duration_days"`
	Features     map[string]any `json:"features,omitempty"`
}

func newPlanRequest(input models.PlanInput) planRequest {
	price := decimal.Zero
	if input.Price != nil {
		price = *input.Price
	}
	return planRequest{
		Name:         input.Name,
		Price:        json.Number(price.String()),
		DurationDays: input.DurationDays,
		Features:     input.Features,
	}
}

// ListPlans lists every subscription plan.
func (c *Client) ListPlans(ctx context.Context) ([]models.Plan, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/plans", "/plans", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Plans []models.Plan `json:"plans"`
	}
	if err := decode(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Plans, nil
}

// CreatePlan creates a subscription plan.
func (c *Client) CreatePlan(ctx context.Context, input models.PlanInput) (*models.Plan, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/plans", "/plans", newPlanRequest(input))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Plan models.Plan `json:"plan"`
	}
	if err := decode(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp.Plan, nil
}

// UpdatePlan replaces the editable fields of a plan.
func (c *Client) UpdatePlan(ctx context.Context, id string, input models.PlanInput) (*models.Plan, error) {
	respBody, err := c.doRequest(ctx, http.MethodPut, "/plans/{id}", "/plans/"+url.PathEscape(id), newPlanRequest(input))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Plan models.Plan `json:"plan"`
	}
	if err := decode(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp.Plan, nil
}

// DeletePlan deletes a plan by ID.
func (c *Client) DeletePlan(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/plans/{id}", "/plans/"+url.PathEscape(id), nil)
	return err
}

// ListTenantSubscriptions returns every tenant joined with its subscription.
func (c *Client) ListTenantSubscriptions(ctx context.Context) ([]models.TenantSubscription, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/contractors/subscriptions", "/contractors/subscriptions", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Subscriptions []models.TenantSubscription `json:"subscriptions"`
	}
	if err := decode(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Subscriptions, nil
}

type assignRequest struct {
	PlanID string `json:"plan_id"`
	Days   int    `json:"days"`
}

type extendRequest struct {
	Days int `json:"days"`
}

// AssignSubscription binds a tenant to a plan for days starting now. The
// returned record is nil when the backend does not include one.
func (c *Client) AssignSubscription(ctx context.Context, tenantID, planID string, days int) (*models.TenantSubscription, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/contractors/{id}/subscription",
		"/contractors/"+url.PathEscape(tenantID)+"/subscription", assignRequest{PlanID: planID, Days: days})
	if err != nil {
		return nil, err
	}
	return subscriptionFrom(respBody)
}

// ExtendSubscription resets a tenant's window to days starting now.
func (c *Client) ExtendSubscription(ctx context.Context, tenantID string, days int) (*models.TenantSubscription, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/contractors/{id}/subscription/extend",
		"/contractors/"+url.PathEscape(tenantID)+"/subscription/extend", extendRequest{Days: days})
	if err != nil {
		return nil, err
	}
	return subscriptionFrom(respBody)
}

// UnassignSubscription removes the tenant's plan.
func (c *Client) UnassignSubscription(ctx context.Context, tenantID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/contractors/{id}/subscription",
		"/contractors/"+url.PathEscape(tenantID)+"/subscription", nil)
	return err
}

// GetTenantSubscriptionHistory returns the tenant's full audit trail.
func (c *Client) GetTenantSubscriptionHistory(ctx context.Context, tenantID string) ([]models.HistoryEntry, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/contractors/{id}/subscription/history",
		"/contractors/"+url.PathEscape(tenantID)+"/subscription/history", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		History []models.HistoryEntry `json:"history"`
	}
	if err := decode(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// subscriptionFrom reads the optional record of a mutation response.
func subscriptionFrom(body []byte) (*models.TenantSubscription, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var resp struct {
		Subscription *models.TenantSubscription `json:"subscription"`
	}
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	if resp.Subscription == nil || resp.Subscription.TenantID == "" {
		return nil, nil
	}
	return resp.Subscription, nil
}
