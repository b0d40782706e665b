package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"leadhook/internal/engine/leads"
	"leadhook/internal/pkg/validator"
	"leadhook/internal/platform/metrics"
	"leadhook/internal/platform/models"
)

type LeadStore interface {
	CreateWithNotes(ctx context.Context, lead *leads.Lead, notes []string) error
	AttachTags(ctx context.Context, leadID string, tagIDs []string) error
}

type TagResolver interface {
	Resolve(ctx context.Context, orgID string, names []string) ([]string, error)
}

type Notifier interface {
	Notify(ctx context.Context, orgID, leadID, summary string) error
}

// Batch is the transformed output of one request, bound to its endpoint.
type Batch struct {
	OrgID    string
	Endpoint *models.Endpoint
	Provider string
	Leads    []CanonicalLead
}

// RecordError reports one lead that was not created.
type RecordError struct {
	Lead  string `json:"lead"`
	Error string `json:"error"`
}

type Outcome struct {
	Created []*leads.Lead
	Errors  []RecordError
}

// Success reports whether at least one lead was created.
func (o *Outcome) Success() bool {
	return len(o.Created) > 0
}

func (o *Outcome) LeadIDs() []string {
	ids := make([]string, 0, len(o.Created))
	for _, l := range o.Created {
		ids = append(ids, l.ID)
	}
	return ids
}

// Coordinator validates and persists each lead of a batch independently.
type Coordinator struct {
	leads    LeadStore
	tags     TagResolver
	notifier Notifier
}

func NewCoordinator(store LeadStore, tags TagResolver, notifier Notifier) *Coordinator {
	return &Coordinator{leads: store, tags: tags, notifier: notifier}
}

func (c *Coordinator) Ingest(ctx context.Context, b Batch) *Outcome {
	out := &Outcome{Created: []*leads.Lead{}, Errors: []RecordError{}}

	for i := range b.Leads {
		in := &b.Leads[i]
		lead, err := c.ingestOne(ctx, b, in)
		if err != nil {
			out.Errors = append(out.Errors, RecordError{Lead: in.Label(), Error: err.Error()})
			continue
		}
		out.Created = append(out.Created, lead)
	}

	for _, lead := range out.Created {
		summary := fmt.Sprintf("New lead from %s: %s", b.Endpoint.Name, lead.Name)
		if err := c.notify(ctx, b.OrgID, lead.ID, summary); err != nil {
			metrics.NotificationFailures.Inc()
			log.Warn().Err(err).
				Str("organization_id", b.OrgID).
				Str("lead_id", lead.ID).
				Msg("lead notification failed")
		}
	}

	metrics.ObserveLeads(b.Provider, len(out.Created), len(out.Errors))
	return out
}

func (c *Coordinator) ingestOne(ctx context.Context, b Batch, in *CanonicalLead) (*leads.Lead, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if len(in.Problems) > 0 {
		return nil, errors.New(strings.Join(in.Problems, "; "))
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	lead := leads.New(b.OrgID)
	lead.Name = in.Name
	if lead.Name == "" {
		lead.Name = in.Email
	}
	lead.Email = in.Email
	lead.Phone = in.Phone
	lead.Company = in.Company
	lead.Value = in.Value
	lead.CustomFields = in.CustomFields
	lead.EndpointID = b.Endpoint.ID
	if in.Source != "" {
		lead.Source = in.Source
	}

	notes := []string{fmt.Sprintf("Created via webhook %s (%s)", b.Endpoint.Name, b.Provider)}
	if note := strings.TrimSpace(in.Note); note != "" {
		notes = append(notes, note)
	}

	if err := c.leads.CreateWithNotes(ctx, lead, notes); err != nil {
		log.Error().Err(err).
			Str("organization_id", b.OrgID).
			Str("endpoint_id", b.Endpoint.ID).
			Msg("failed to persist lead")
		return nil, errors.New("failed to save lead")
	}

	if len(in.Tags) > 0 {
		if err := c.attachTags(ctx, b.OrgID, lead.ID, in.Tags); err != nil {
			log.Warn().Err(err).
				Str("organization_id", b.OrgID).
				Str("lead_id", lead.ID).
				Msg("failed to tag lead")
		}
	}
	return lead, nil
}

func (c *Coordinator) attachTags(ctx context.Context, orgID, leadID string, names []string) error {
	ids, err := c.tags.Resolve(ctx, orgID, names)
	if len(ids) > 0 {
		if attachErr := c.leads.AttachTags(ctx, leadID, ids); attachErr != nil {
			return attachErr
		}
	}
	return err
}

// notify keeps a failing or panicking notifier from reaching the caller.
func (c *Coordinator) notify(ctx context.Context, orgID, leadID, summary string) (err error) {
	if c.notifier == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return c.notifier.Notify(ctx, orgID, leadID, summary)
}
