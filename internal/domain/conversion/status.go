package conversion

import (
	"fmt"
	"net/http"
)

// Converter status codes.
const (
	StatusOK              = 0
	StatusInputNotFound   = 1
	StatusParseFailed     = 2
	StatusGeometryFailed  = 3
	StatusWriteFailed     = 4
	StatusInvalidOptions  = 5
	StatusNativeException = 100
)

// Outcome is the client-facing classification of a conversion result.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeInputNotFound    Outcome = "input_not_found"
	OutcomeInvalidOptions   Outcome = "invalid_options"
	OutcomeConversionFailed Outcome = "conversion_failed"
	OutcomeUnknownError     Outcome = "unknown_error"
	OutcomeLoadFailed       Outcome = "load_failed"
)

// Classify maps a converter status code onto an Outcome.
func Classify(code int) Outcome {
	switch code {
	case StatusOK:
		return OutcomeOK
	case StatusInputNotFound:
		return OutcomeInputNotFound
	case StatusInvalidOptions:
		return OutcomeInvalidOptions
	case StatusParseFailed, StatusGeometryFailed, StatusWriteFailed:
		return OutcomeConversionFailed
	default:
		return OutcomeUnknownError
	}
}

// HTTPStatus returns the response status for o.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomeOK:
		return http.StatusOK
	case OutcomeInputNotFound, OutcomeInvalidOptions:
		return http.StatusBadRequest
	case OutcomeLoadFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the human readable explanation for a failed conversion.
func (o Outcome) Message(code int) string {
	switch o {
	case OutcomeOK:
		return "Conversion succeeded."
	case OutcomeInputNotFound:
		return "Input IFC file could not be found by the converter."
	case OutcomeInvalidOptions:
		return "Conversion options were invalid."
	case OutcomeConversionFailed:
		return fmt.Sprintf("Converter failed with code %d.", code)
	case OutcomeLoadFailed:
		return "Native converter library is not available."
	default:
		return fmt.Sprintf("Converter returned unexpected code %d.", code)
	}
}
