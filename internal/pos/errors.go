package pos

import (
	"errors"
	"fmt"
)

// ── Error taxonomy ────────────────────────────────────────────────────────────
// Every failure surfaced to the cashier falls in one of four families:
//   - ValidationError:   rejected locally, no network call was made
//   - TransportError:    the backend could not be reached or answered garbage
//   - BusinessRejection: the backend answered success=false with a message
//   - PartialFailure:    the invoice exists but a follow-up step failed

// ValidationError blocks a transition before any side effect happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// TransportError wraps network, timeout, status and decoding failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BusinessRejection carries the server-supplied reason verbatim.
type BusinessRejection struct {
	Op      string
	Message string
}

func (e *BusinessRejection) Error() string {
	return e.Message
}

// PartialFailure reports a follow-up step that failed after the invoice was accepted.
type PartialFailure struct {
	InvoiceID int64
	Step      string
	Err       error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("factura %d: %s: %v", e.InvoiceID, e.Step, e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }

var (
	ErrProductNotFound       = errors.New("Producto no encontrado")
	ErrRegisterClosed        = errors.New("No se puede facturar: Caja cerrada")
	ErrShiftClosed           = errors.New("El turno no está abierto")
	ErrMovementShiftChanged  = errors.New("El turno de la factura ya fue cerrado")
	ErrSubmissionInFlight    = errors.New("Ya hay una factura en proceso")
	ErrEmptyCountUnconfirmed = errors.New("¿Cerrar turno sin ingresar conteo?")
	ErrPDFNotAvailable       = errors.New("PDF no disponible")
	ErrEmptyCart             = errors.New("No hay productos en la factura")
)

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
