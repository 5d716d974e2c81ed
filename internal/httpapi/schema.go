package httpapi

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// bookingSchema validates incoming booking payloads before they reach the
// core. scheduled_at is RFC 3339 when present.
const bookingSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["recipient", "org_id", "branch_id", "service_id"],
	"properties": {
		"recipient":    {"type": "string", "minLength": 1, "maxLength": 64},
		"org_id":       {"type": "string", "minLength": 1, "maxLength": 64},
		"branch_id":    {"type": "string", "minLength": 1, "maxLength": 64},
		"service_id":   {"type": "string", "minLength": 1, "maxLength": 64},
		"scheduled_at": {"type": "string", "format": "date-time"}
	}
}`

type requestValidator struct {
	booking *gojsonschema.Schema
}

func newRequestValidator() (*requestValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(bookingSchema))
	if err != nil {
		return nil, fmt.Errorf("compile booking schema: %w", err)
	}
	return &requestValidator{booking: schema}, nil
}

// validateBooking returns a joined description of all violations, or "".
func (v *requestValidator) validateBooking(payload []byte) (string, error) {
	result, err := v.booking.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return "", err
	}
	if result.Valid() {
		return "", nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return strings.Join(details, "; "), nil
}
