// Package ports defines the interfaces the leads module needs from outside collaborators.
package ports

import (
	"context"
	"errors"
)

// ErrDuplicateContact is returned by CreateContact when the email is already known downstream.
var ErrDuplicateContact = errors.New("crm: contact already exists")

// ErrContactNotFound is returned by FindContactByEmail when no contact matches.
var ErrContactNotFound = errors.New("crm: contact not found")

// ContactInput is the contact the router submits.
type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Source    string
	Tags      []string
}

// Opportunity places a contact in a pipeline stage.
type Opportunity struct {
	ContactID     string
	PipelineID    string
	StageID       string
	MonetaryValue float64
	Name          string
}

// CRM is the downstream system of record for contacts and pipelines.
type CRM interface {
	CreateContact(ctx context.Context, contact ContactInput) (string, error)
	FindContactByEmail(ctx context.Context, email string) (string, error)
	AddToPipeline(ctx context.Context, opp Opportunity) error
}
