package ingest

import "net/http"

// salesforceTransformer maps Lead or Contact records posted by an outbound
// flow: {"new": [records]}, {"sobject": record}, or a bare record.
type salesforceTransformer struct{}

func (salesforceTransformer) Name() string                  { return TypeSalesforce }
func (salesforceTransformer) Source() string                { return TypeSalesforce }
func (salesforceTransformer) MatchHeaders(http.Header) bool { return false }

func (salesforceTransformer) MatchBody(body interface{}) bool {
	m, ok := asObject(body)
	if !ok {
		return false
	}
	if _, ok := asObject(m["sobject"]); ok {
		return true
	}
	if list, ok := asList(m["new"]); ok && len(list) > 0 {
		first, ok := asObject(list[0])
		return ok && isSObject(first)
	}
	return isSObject(m)
}

func isSObject(m map[string]interface{}) bool {
	attrs, ok := asObject(m["attributes"])
	return ok && attrs["type"] != nil
}

func (salesforceTransformer) Transform(body interface{}, _ RequestMeta) ([]CanonicalLead, error) {
	m, ok := asObject(body)
	if !ok {
		return nil, transformErr(TypeSalesforce, "salesforce payload must be an object")
	}

	var records []map[string]interface{}
	switch {
	case m["new"] != nil:
		list, ok := asList(m["new"])
		if !ok {
			return nil, transformErr(TypeSalesforce, "salesforce new must be an array of records")
		}
		for _, item := range list {
			rec, ok := asObject(item)
			if !ok {
				return nil, transformErr(TypeSalesforce, "salesforce record is not an object")
			}
			records = append(records, rec)
		}
	case m["sobject"] != nil:
		rec, ok := asObject(m["sobject"])
		if !ok {
			return nil, transformErr(TypeSalesforce, "salesforce sobject must be an object")
		}
		records = append(records, rec)
	case isSObject(m):
		records = append(records, m)
	default:
		return nil, transformErr(TypeSalesforce, "salesforce payload missing sobject records")
	}

	leads := make([]CanonicalLead, 0, len(records))
	for _, rec := range records {
		leads = append(leads, salesforceLead(rec))
	}
	return leads, nil
}

func salesforceLead(rec map[string]interface{}) CanonicalLead {
	l := CanonicalLead{
		Name:    firstStr(rec, "Name"),
		Email:   firstStr(rec, "Email"),
		Phone:   firstStr(rec, "Phone", "MobilePhone"),
		Company: firstStr(rec, "Company", "Account"),
		Source:  firstStr(rec, "LeadSource"),
		Note:    firstStr(rec, "Description"),
	}
	if l.Name == "" {
		l.Name = joinName(firstStr(rec, "FirstName"), firstStr(rec, "LastName"))
	}
	if raw, ok := firstKey(rec, "AnnualRevenue", "Amount"); ok {
		setValue(&l, raw)
	}
	if id := firstStr(rec, "Id"); id != "" {
		l.setCustom("salesforce_id", id)
	}
	if status := firstStr(rec, "Status"); status != "" {
		l.setCustom("salesforce_status", status)
	}
	if attrs, ok := asObject(rec["attributes"]); ok {
		if typ := str(attrs["type"]); typ != "" {
			l.setCustom("salesforce_type", typ)
		}
	}
	return l
}
