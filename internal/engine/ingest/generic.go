package ingest

import (
	"net/http"
	"strings"
)

// genericTransformer accepts bodies that are already lead shaped: a single
// object, an array of objects, or {"leads": [...]}.
type genericTransformer struct{}

var genericKnownKeys = map[string]bool{
	"name": true, "full_name": true, "first_name": true, "last_name": true,
	"email": true, "phone": true, "company": true, "organization": true,
	"source": true, "value": true, "amount": true, "tags": true,
	"note": true, "notes": true, "message": true, "custom_fields": true,
	"event": true, "type": true,
}

func (genericTransformer) Name() string                  { return TypeGeneric }
func (genericTransformer) Source() string                { return "webhook" }
func (genericTransformer) MatchHeaders(http.Header) bool { return false }
func (genericTransformer) MatchBody(interface{}) bool    { return true }

func (genericTransformer) Transform(body interface{}, _ RequestMeta) ([]CanonicalLead, error) {
	switch b := body.(type) {
	case []interface{}:
		return genericList(b)
	case map[string]interface{}:
		if raw, ok := b["leads"]; ok {
			list, ok := asList(raw)
			if !ok {
				return nil, transformErr(TypeGeneric, "leads must be an array")
			}
			return genericList(list)
		}
		if isHeartbeat(b) {
			return nil, nil
		}
		return []CanonicalLead{genericLead(b)}, nil
	default:
		return nil, transformErr(TypeGeneric, "payload must be a JSON object or array")
	}
}

func genericList(items []interface{}) ([]CanonicalLead, error) {
	leads := make([]CanonicalLead, 0, len(items))
	for i, item := range items {
		m, ok := asObject(item)
		if !ok {
			return nil, transformErr(TypeGeneric, "lead entry %d is not an object", i)
		}
		leads = append(leads, genericLead(m))
	}
	return leads, nil
}

// isHeartbeat matches empty bodies and ping/test events that carry no contact.
func isHeartbeat(m map[string]interface{}) bool {
	if len(m) == 0 {
		return true
	}
	if _, ok := firstKey(m, "name", "full_name", "first_name", "email"); ok {
		return false
	}
	switch strings.ToLower(firstStr(m, "event", "type")) {
	case "ping", "test", "heartbeat":
		return true
	}
	return false
}

func genericLead(m map[string]interface{}) CanonicalLead {
	l := CanonicalLead{
		Name:    firstStr(m, "name", "full_name"),
		Email:   firstStr(m, "email"),
		Phone:   firstStr(m, "phone"),
		Company: firstStr(m, "company", "organization"),
		Source:  firstStr(m, "source"),
		Tags:    strList(m["tags"]),
		Note:    firstStr(m, "note", "notes", "message"),
	}
	if l.Name == "" {
		l.Name = joinName(firstStr(m, "first_name"), firstStr(m, "last_name"))
	}
	if raw, ok := firstKey(m, "value", "amount"); ok {
		setValue(&l, raw)
	}

	if custom, ok := asObject(m["custom_fields"]); ok {
		for k, v := range custom {
			l.setCustom(k, v)
		}
	}
	for k, v := range m {
		if !genericKnownKeys[k] && isScalar(v) {
			l.setCustom(k, v)
		}
	}
	return l
}
