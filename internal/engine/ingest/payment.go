package ingest

import (
	"fmt"
	"net/http"
)

// paymentTransformer turns a payment event into a customer lead. The
// payment fields may sit at the top level, under data, or under data.object.
type paymentTransformer struct{}

func (paymentTransformer) Name() string   { return TypePayment }
func (paymentTransformer) Source() string { return TypePayment }

func (paymentTransformer) MatchHeaders(h http.Header) bool {
	return h.Get("Stripe-Signature") != ""
}

func (paymentTransformer) MatchBody(body interface{}) bool {
	obj, ok := paymentObject(body)
	return ok && obj["customer_id"] != nil
}

func paymentObject(body interface{}) (map[string]interface{}, bool) {
	m, ok := asObject(body)
	if !ok {
		return nil, false
	}
	if data, ok := asObject(m["data"]); ok {
		if obj, ok := asObject(data["object"]); ok {
			return obj, true
		}
		return data, true
	}
	return m, true
}

func (paymentTransformer) Transform(body interface{}, _ RequestMeta) ([]CanonicalLead, error) {
	obj, ok := paymentObject(body)
	if !ok {
		return nil, transformErr(TypePayment, "payment payload must be an object")
	}
	customerID := firstStr(obj, "customer_id")
	if customerID == "" {
		return nil, transformErr(TypePayment, "payment payload missing customer_id")
	}

	l := CanonicalLead{
		Name:  firstStr(obj, "customer_name", "name"),
		Email: firstStr(obj, "customer_email", "email", "receipt_email"),
		Phone: firstStr(obj, "customer_phone", "phone"),
		Tags:  []string{"customer"},
	}
	if raw, ok := firstKey(obj, "amount"); ok {
		setValue(&l, raw)
	}

	l.setCustom("customer_id", customerID)
	currency := firstStr(obj, "currency")
	if currency != "" {
		l.setCustom("currency", currency)
	}
	paymentID := firstStr(obj, "payment_id", "id")
	if paymentID != "" {
		l.setCustom("payment_id", paymentID)
	}
	if status := firstStr(obj, "status"); status != "" {
		l.setCustom("payment_status", status)
	}
	if paymentID != "" {
		l.Note = fmt.Sprintf("Payment %s: %s %s", paymentID, str(obj["amount"]), currency)
	}
	return []CanonicalLead{l}, nil
}
