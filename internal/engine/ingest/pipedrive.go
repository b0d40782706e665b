package ingest

import (
	"net/http"
	"strings"
)

// pipedriveTransformer maps person and deal events. v1 payloads carry the
// record in "current" and the kind in meta.object; v2 uses "data" and
// meta.entity. Deletions and other objects produce no leads.
type pipedriveTransformer struct{}

func (pipedriveTransformer) Name() string   { return TypePipedrive }
func (pipedriveTransformer) Source() string { return TypePipedrive }

func (pipedriveTransformer) MatchHeaders(h http.Header) bool {
	for k := range h {
		if strings.HasPrefix(http.CanonicalHeaderKey(k), "X-Pipedrive-") {
			return true
		}
	}
	return false
}

func (pipedriveTransformer) MatchBody(body interface{}) bool {
	m, ok := asObject(body)
	if !ok {
		return false
	}
	meta, ok := asObject(m["meta"])
	if !ok {
		return false
	}
	_, hasCurrent := m["current"]
	_, hasData := m["data"]
	return (meta["object"] != nil && hasCurrent) || (meta["entity"] != nil && hasData)
}

func (pipedriveTransformer) Transform(body interface{}, _ RequestMeta) ([]CanonicalLead, error) {
	m, ok := asObject(body)
	if !ok {
		return nil, transformErr(TypePipedrive, "pipedrive payload must be an object")
	}
	meta, ok := asObject(m["meta"])
	if !ok {
		return nil, transformErr(TypePipedrive, "pipedrive payload missing meta")
	}

	action := strings.ToLower(firstStr(meta, "action"))
	if strings.HasPrefix(action, "delete") {
		return nil, nil
	}

	raw, _ := firstKey(m, "current", "data")
	if raw == nil {
		return nil, nil
	}
	current, ok := asObject(raw)
	if !ok {
		return nil, transformErr(TypePipedrive, "pipedrive record must be an object")
	}

	var l CanonicalLead
	switch strings.ToLower(firstStr(meta, "object", "entity")) {
	case "person":
		l = CanonicalLead{
			Name:    firstStr(current, "name"),
			Email:   pipedrivePrimary(current["email"]),
			Phone:   pipedrivePrimary(current["phone"]),
			Company: firstStr(current, "org_name"),
		}
		if l.Email == "" {
			l.Email = pipedrivePrimary(current["emails"])
		}
		if l.Phone == "" {
			l.Phone = pipedrivePrimary(current["phones"])
		}
	case "deal":
		l = CanonicalLead{
			Name:    firstStr(current, "person_name", "title"),
			Company: firstStr(current, "org_name"),
			Note:    firstStr(current, "title"),
		}
		if v, ok := current["value"]; ok {
			setValue(&l, v)
		}
		if cur := firstStr(current, "currency"); cur != "" {
			l.setCustom("currency", cur)
		}
	default:
		return nil, nil
	}

	if id := firstStr(current, "id"); id != "" {
		l.setCustom("pipedrive_id", id)
	}
	return []CanonicalLead{l}, nil
}

// pipedrivePrimary picks the primary entry from [{"value": .., "primary": true}]
// lists, falling back to the first entry or a plain string.
func pipedrivePrimary(v interface{}) string {
	if s := str(v); s != "" {
		return s
	}
	list, ok := asList(v)
	if !ok {
		return ""
	}
	var first string
	for _, item := range list {
		entry, ok := asObject(item)
		if !ok {
			if first == "" {
				first = str(item)
			}
			continue
		}
		value := str(entry["value"])
		if primary, _ := entry["primary"].(bool); primary && value != "" {
			return value
		}
		if first == "" {
			first = value
		}
	}
	return first
}
