package ingest

import (
	"fmt"
	"net/http"
	"strings"
)

// Payload types.
const (
	TypeGeneric    = "generic"
	TypeHubSpot    = "hubspot"
	TypeSalesforce = "salesforce"
	TypePipedrive  = "pipedrive"
	TypeTypeform   = "typeform"
	TypePayment    = "payment"
)

// CanonicalLead is the provider-neutral shape every transformer produces.
type CanonicalLead struct {
	Name         string                 `json:"name" validate:"required_without=Email,max=255"`
	Email        string                 `json:"email" validate:"omitempty,email"`
	Phone        string                 `json:"phone"`
	Company      string                 `json:"company"`
	Source       string                 `json:"source"`
	Value        float64                `json:"value" validate:"gte=0"`
	CustomFields map[string]interface{} `json:"custom_fields"`
	Tags         []string               `json:"tags"`
	Note         string                 `json:"note"`

	// Problems are field errors found while mapping, reported as validation
	// failures for this record only.
	Problems []string `json:"-"`
}

// Label identifies the lead in per-record error reports.
func (l *CanonicalLead) Label() string {
	if l.Name != "" {
		return l.Name
	}
	if l.Email != "" {
		return l.Email
	}
	return "unknown"
}

func (l *CanonicalLead) setCustom(key string, value interface{}) {
	if l.CustomFields == nil {
		l.CustomFields = map[string]interface{}{}
	}
	l.CustomFields[key] = value
}

// RequestMeta is what a transformer may know about the request besides the body.
type RequestMeta struct {
	EndpointID   string
	EndpointName string
	Headers      http.Header
	HeaderRules  map[string]string // request header -> custom field
}

type Result struct {
	Leads    []CanonicalLead
	Source   string
	Provider string
}

// TransformationError means the body does not have the shape its type requires.
type TransformationError struct {
	Provider string
	Reason   string
}

func (e *TransformationError) Error() string {
	return e.Reason
}

func transformErr(provider, format string, args ...interface{}) *TransformationError {
	return &TransformationError{Provider: provider, Reason: fmt.Sprintf(format, args...)}
}

type Transformer interface {
	Name() string
	// Source labels leads that do not carry their own.
	Source() string
	// MatchHeaders and MatchBody report provider fingerprints. Header
	// matches take precedence over body matches across all providers.
	MatchHeaders(h http.Header) bool
	MatchBody(body interface{}) bool
	Transform(body interface{}, meta RequestMeta) ([]CanonicalLead, error)
}

// Registry maps payload types to transformers. It is read-only once built.
type Registry struct {
	byName map[string]Transformer
	order  []Transformer
}

func NewRegistry(ts ...Transformer) *Registry {
	r := &Registry{byName: make(map[string]Transformer, len(ts))}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// DefaultRegistry holds every built-in provider.
func DefaultRegistry() *Registry {
	return NewRegistry(
		genericTransformer{},
		hubspotTransformer{},
		salesforceTransformer{},
		pipedriveTransformer{},
		typeformTransformer{},
		paymentTransformer{},
	)
}

// Register adds t. Registering a name twice panics.
func (r *Registry) Register(t Transformer) {
	name := t.Name()
	if _, dup := r.byName[name]; dup {
		panic("ingest: transformer registered twice: " + name)
	}
	r.byName[name] = t
	r.order = append(r.order, t)
}

func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, t := range r.order {
		names = append(names, t.Name())
	}
	return names
}

// DetectType picks the payload type for a request. A configured type always
// wins; otherwise header fingerprints, then body fingerprints, then generic.
func (r *Registry) DetectType(configured string, headers http.Header, body interface{}) string {
	if c := strings.ToLower(strings.TrimSpace(configured)); c != "" {
		return c
	}
	for _, t := range r.order {
		if t.Name() != TypeGeneric && t.MatchHeaders(headers) {
			return t.Name()
		}
	}
	for _, t := range r.order {
		if t.Name() != TypeGeneric && t.MatchBody(body) {
			return t.Name()
		}
	}
	return TypeGeneric
}

// Transform runs the transformer for typ and applies the endpoint header rules.
func (r *Registry) Transform(typ string, body interface{}, meta RequestMeta) (*Result, error) {
	t, ok := r.byName[typ]
	if !ok {
		return nil, transformErr(typ, "unsupported payload type %q", typ)
	}

	leads, err := t.Transform(body, meta)
	if err != nil {
		if _, ok := err.(*TransformationError); ok {
			return nil, err
		}
		return nil, &TransformationError{Provider: typ, Reason: err.Error()}
	}

	for i := range leads {
		if leads[i].Source == "" {
			leads[i].Source = t.Source()
		}
		applyHeaderRules(&leads[i], meta)
	}

	return &Result{Leads: leads, Source: t.Source(), Provider: t.Name()}, nil
}

func applyHeaderRules(l *CanonicalLead, meta RequestMeta) {
	for header, field := range meta.HeaderRules {
		if field == "" {
			continue
		}
		if v := meta.Headers.Get(header); v != "" {
			l.setCustom(field, v)
		}
	}
}
