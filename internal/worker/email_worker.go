package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is queued on QueueEmail after a shift closes.
type EmailJobPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	PDFPath string   `json:"pdf_path"`
}

// ReportMailer is satisfied by *infra.Mailer.
type ReportMailer interface {
	SendReport(to []string, subject, body, pdfPath string) error
}

type EmailWorker struct {
	mailer ReportMailer
}

func NewEmailWorker(mailer ReportMailer) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

var errNoRecipients = errors.New("email_worker: no recipients")

// Process sends one shift report. A malformed payload is returned as an
// error so the pool moves it to the DLQ.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", err)
	}
	if len(payload.To) == 0 {
		log.Warn().Str("subject", payload.Subject).Msg("email_worker: empty recipient list, skipping")
		return errNoRecipients
	}
	if err := w.mailer.SendReport(payload.To, payload.Subject, payload.Body, payload.PDFPath); err != nil {
		return err
	}
	log.Info().Strs("to", payload.To).Str("subject", payload.Subject).Msg("email_worker: report sent")
	return nil
}
