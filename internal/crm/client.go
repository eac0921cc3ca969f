// Package crm is the outbound HTTP client for the downstream CRM.
package crm

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

	"realty_leads_backend/internal/leads/ports"
	"realty_leads_backend/platform/config"
	"realty_leads_backend/platform/logger"
)

type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	http       *http.Client
	log        *logger.Logger
}

type contactRequest struct {
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Source     string   `json:"source,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	LocationID string   `json:"locationId,omitempty"`
}

type contactResponse struct {
	Contact struct {
		ID string `json:"id"`
	} `json:"contact"`
}

type searchResponse struct {
	Contacts []struct {
		ID string `json:"id"`
	} `json:"contacts"`
}

type opportunityRequest struct {
	PipelineID      string  `json:"pipelineId"`
	PipelineStageID string  `json:"pipelineStageId"`
	ContactID       string  `json:"contactId"`
	MonetaryValue   float64 `json:"monetaryValue"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	LocationID      string  `json:"locationId,omitempty"`
}

// NewClient returns nil when no CRM is configured, which the router treats as unavailable.
func NewClient(cfg config.CRMConfig, log *logger.Logger) *Client {
	if cfg.GetCRMBaseURL() == "" {
		return nil
	}

	timeout := cfg.GetCRMTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetCRMBaseURL(), "/"),
		apiKey:     cfg.GetCRMAPIKey(),
		locationID: cfg.GetCRMLocationID(),
		http:       &http.Client{Timeout: timeout},
		log:        log,
	}
}

// CreateContact implements ports.CRM. 409 and 422 responses map to ports.ErrDuplicateContact.
func (c *Client) CreateContact(ctx context.Context, contact ports.ContactInput) (string, error) {
	payload := contactRequest{
		FirstName:  contact.FirstName,
		LastName:   contact.LastName,
		Email:      contact.Email,
		Phone:      contact.Phone,
		Source:     contact.Source,
		Tags:       contact.Tags,
		LocationID: c.locationID,
	}

	var out contactResponse
	status, err := c.do(ctx, http.MethodPost, "/contacts", payload, &out)
	if status == http.StatusConflict || status == http.StatusUnprocessableEntity {
		return "", ports.ErrDuplicateContact
	}
	if err != nil {
		return "", err
	}
	if out.Contact.ID == "" {
		return "", fmt.Errorf("crm create contact: response without id")
	}

	c.log.Info("crm contact created", "contactId", out.Contact.ID)
	return out.Contact.ID, nil
}

// FindContactByEmail implements ports.CRM.
func (c *Client) FindContactByEmail(ctx context.Context, email string) (string, error) {
	q := url.Values{}
	q.Set("email", email)
	if c.locationID != "" {
		q.Set("locationId", c.locationID)
	}

	var out searchResponse
	if _, err := c.do(ctx, http.MethodGet, "/contacts/search?"+q.Encode(), nil, &out); err != nil {
		return "", err
	}
	if len(out.Contacts) == 0 || out.Contacts[0].ID == "" {
		return "", ports.ErrContactNotFound
	}
	return out.Contacts[0].ID, nil
}

// AddToPipeline implements ports.CRM.
func (c *Client) AddToPipeline(ctx context.Context, opp ports.Opportunity) error {
	payload := opportunityRequest{
		PipelineID:      opp.PipelineID,
		PipelineStageID: opp.StageID,
		ContactID:       opp.ContactID,
		MonetaryValue:   opp.MonetaryValue,
		Name:            opp.Name,
		Status:          "open",
		LocationID:      c.locationID,
	}
	_, err := c.do(ctx, http.MethodPost, "/opportunities", payload, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal crm payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("crm request failed: %w", ctxErr)
		}
		return 0, fmt.Errorf("crm request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return resp.StatusCode, fmt.Errorf("crm %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode crm response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

var _ ports.CRM = (*Client)(nil)
