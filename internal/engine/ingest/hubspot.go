package ingest

import "net/http"

// hubspotTransformer maps contact payloads ({"properties": {...}}) and
// batches of CRM events. Events without properties carry no contact data
// and produce no leads.
type hubspotTransformer struct{}

func (hubspotTransformer) Name() string   { return TypeHubSpot }
func (hubspotTransformer) Source() string { return TypeHubSpot }

func (hubspotTransformer) MatchHeaders(h http.Header) bool {
	return h.Get("X-HubSpot-Signature") != "" || h.Get("X-HubSpot-Signature-v3") != ""
}

func (hubspotTransformer) MatchBody(body interface{}) bool {
	if list, ok := asList(body); ok && len(list) > 0 {
		first, ok := asObject(list[0])
		return ok && first["subscriptionType"] != nil && first["portalId"] != nil
	}
	m, ok := asObject(body)
	if !ok {
		return false
	}
	_, hasProps := asObject(m["properties"])
	return hasProps && (m["portalId"] != nil || m["portal-id"] != nil || m["vid"] != nil)
}

func (hubspotTransformer) Transform(body interface{}, _ RequestMeta) ([]CanonicalLead, error) {
	if list, ok := asList(body); ok {
		var leads []CanonicalLead
		for _, item := range list {
			m, ok := asObject(item)
			if !ok {
				return nil, transformErr(TypeHubSpot, "hubspot event is not an object")
			}
			if props, ok := asObject(m["properties"]); ok {
				leads = append(leads, hubspotLead(m, props))
			}
		}
		return leads, nil
	}

	m, ok := asObject(body)
	if !ok {
		return nil, transformErr(TypeHubSpot, "hubspot payload must be an object or an array of events")
	}
	props, ok := asObject(m["properties"])
	if !ok {
		return nil, transformErr(TypeHubSpot, "hubspot payload missing properties")
	}
	return []CanonicalLead{hubspotLead(m, props)}, nil
}

// hubspotProp unwraps {"value": x} property envelopes.
func hubspotProp(props map[string]interface{}, key string) interface{} {
	v := props[key]
	if env, ok := asObject(v); ok {
		return env["value"]
	}
	return v
}

func hubspotLead(m, props map[string]interface{}) CanonicalLead {
	l := CanonicalLead{
		Name:    joinName(str(hubspotProp(props, "firstname")), str(hubspotProp(props, "lastname"))),
		Email:   str(hubspotProp(props, "email")),
		Phone:   str(hubspotProp(props, "phone")),
		Company: str(hubspotProp(props, "company")),
		Note:    str(hubspotProp(props, "message")),
	}
	if l.Phone == "" {
		l.Phone = str(hubspotProp(props, "mobilephone"))
	}
	if raw := hubspotProp(props, "annualrevenue"); raw != nil {
		setValue(&l, raw)
	}
	if id := firstStr(m, "vid", "objectId"); id != "" {
		l.setCustom("hubspot_id", id)
	}
	if stage := str(hubspotProp(props, "lifecyclestage")); stage != "" {
		l.setCustom("lifecycle_stage", stage)
	}
	return l
}
