package ingest

import "errors"

var (
	ErrInvalidSignature = errors.New("Invalid webhook signature")
	ErrMalformedPayload = errors.New("Invalid JSON payload")
	ErrPayloadTooLarge  = errors.New("Payload too large")
)
