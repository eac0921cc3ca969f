package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realty_leads_backend/internal/leads/ports"
	"realty_leads_backend/platform/logger"
)

type testConfig struct {
	baseURL string
}

func (c testConfig) GetCRMBaseURL() string        { return c.baseURL }
func (c testConfig) GetCRMAPIKey() string         { return "secret" }
func (c testConfig) GetCRMLocationID() string     { return "loc-1" }
func (c testConfig) GetCRMTimeout() time.Duration { return time.Second }

func TestNewClientDisabledWithoutURL(t *testing.T) {
	if c := NewClient(testConfig{}, logger.Discard()); c != nil {
		t.Fatalf("expected nil client without base url")
	}
}

func TestCreateContact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts" || r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Authorization"))
		}
		var body contactRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.LocationID != "loc-1" || body.Email != "jane@x.com" {
			t.Errorf("unexpected body %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"contact":{"id":"c-42"}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig{baseURL: srv.URL}, logger.Discard())
	id, err := c.CreateContact(context.Background(), ports.ContactInput{Email: "jane@x.com"})
	if err != nil || id != "c-42" {
		t.Fatalf("expected c-42, got %q (%v)", id, err)
	}
}

func TestCreateContactDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"duplicate email"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig{baseURL: srv.URL}, logger.Discard())
	_, err := c.CreateContact(context.Background(), ports.ContactInput{Email: "jane@x.com"})
	if !errors.Is(err, ports.ErrDuplicateContact) {
		t.Fatalf("expected duplicate contact error, got %v", err)
	}
}

func TestFindContactByEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "jane@x.com" {
			_, _ = w.Write([]byte(`{"contacts":[{"id":"c-7"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"contacts":[]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig{baseURL: srv.URL}, logger.Discard())
	if id, err := c.FindContactByEmail(context.Background(), "jane@x.com"); err != nil || id != "c-7" {
		t.Fatalf("expected c-7, got %q (%v)", id, err)
	}
	if _, err := c.FindContactByEmail(context.Background(), "nobody@x.com"); !errors.Is(err, ports.ErrContactNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddToPipelineServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testConfig{baseURL: srv.URL}, logger.Discard())
	if err := c.AddToPipeline(context.Background(), ports.Opportunity{ContactID: "c-1"}); err == nil {
		t.Fatalf("expected error for 500")
	}
}
