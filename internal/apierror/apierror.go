// Package apierror holds the error envelopes of the terminal gateway. Every
// 4xx/5xx response goes through it so internals (stack traces, backend
// bodies) never reach the kiosk.
package apierror

// APIError is the envelope for all 4xx/5xx responses. Kind names the error
// family: validacion, no_encontrado, rechazo, transporte, interno.
type APIError struct {
	Detail string `json:"detail"`
	Kind   string `json:"tipo,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithKind(msg, kind string) *APIError {
	return &APIError{Detail: msg, Kind: kind}
}

// ValidationError wraps request field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
