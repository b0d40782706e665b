package ingest

import (
	"net/http"
	"strings"
)

// typeformTransformer maps a form_response into one lead. Answers are
// routed by their type first, then by the field ref; anything unmapped is
// kept as a custom field keyed by ref.
type typeformTransformer struct{}

func (typeformTransformer) Name() string   { return TypeTypeform }
func (typeformTransformer) Source() string { return TypeTypeform }

func (typeformTransformer) MatchHeaders(h http.Header) bool {
	return h.Get("Typeform-Signature") != ""
}

func (typeformTransformer) MatchBody(body interface{}) bool {
	m, ok := asObject(body)
	if !ok {
		return false
	}
	_, ok = asObject(m["form_response"])
	return ok
}

func (typeformTransformer) Transform(body interface{}, _ RequestMeta) ([]CanonicalLead, error) {
	m, ok := asObject(body)
	if !ok {
		return nil, transformErr(TypeTypeform, "typeform payload must be an object")
	}
	resp, ok := asObject(m["form_response"])
	if !ok {
		return nil, transformErr(TypeTypeform, "typeform payload missing form_response")
	}

	var answers []interface{}
	if raw, present := resp["answers"]; present && raw != nil {
		answers, ok = asList(raw)
		if !ok {
			return nil, transformErr(TypeTypeform, "typeform answers must be an array")
		}
	}
	if len(answers) == 0 {
		return nil, nil
	}

	var l CanonicalLead
	var first, last string
	for _, item := range answers {
		a, ok := asObject(item)
		if !ok {
			continue
		}
		ref := typeformRef(a)
		lref := strings.ToLower(ref)

		switch firstStr(a, "type") {
		case "email":
			l.Email = firstStr(a, "email")
		case "phone_number":
			l.Phone = firstStr(a, "phone_number")
		case "number":
			if strings.Contains(lref, "value") || strings.Contains(lref, "budget") || strings.Contains(lref, "amount") {
				setValue(&l, a["number"])
			} else {
				l.setCustom(ref, a["number"])
			}
		case "text":
			text := firstStr(a, "text")
			switch {
			case strings.Contains(lref, "company"):
				l.Company = text
			case strings.Contains(lref, "first_name"):
				first = text
			case strings.Contains(lref, "last_name"):
				last = text
			case strings.Contains(lref, "name"):
				l.Name = text
			case strings.Contains(lref, "note") || strings.Contains(lref, "message"):
				l.Note = text
			default:
				l.setCustom(ref, text)
			}
		case "choice":
			if c, ok := asObject(a["choice"]); ok {
				l.setCustom(ref, firstStr(c, "label", "other"))
			}
		case "choices":
			if c, ok := asObject(a["choices"]); ok {
				l.setCustom(ref, strList(c["labels"]))
			}
		default:
			for _, k := range []string{"boolean", "url", "date", "file_url"} {
				if v, ok := a[k]; ok {
					l.setCustom(ref, v)
					break
				}
			}
		}
	}
	if l.Name == "" {
		l.Name = joinName(first, last)
	}

	if hidden, ok := asObject(resp["hidden"]); ok {
		for k, v := range hidden {
			if isScalar(v) {
				l.setCustom(k, v)
			}
		}
	}
	if formID := firstStr(resp, "form_id"); formID != "" {
		l.setCustom("typeform_form_id", formID)
	}
	if token := firstStr(resp, "token"); token != "" {
		l.setCustom("typeform_response_id", token)
	}
	return []CanonicalLead{l}, nil
}

func typeformRef(a map[string]interface{}) string {
	field, _ := asObject(a["field"])
	if ref := firstStr(field, "ref", "id"); ref != "" {
		return ref
	}
	return firstStr(a, "type")
}
