package infra

// pdf.go renders the shift close report on receipt-width paper:
//   - header with cashier and shift times
//   - expected / counted / difference table for cash, card and total
//   - billing statistics
//   - the movement ledger
//
// Invoice PDFs are not generated here; the backend owns them.

import (
	"fmt"
	"os"
	"path/filepath"

	"cajapos/internal/pos"

	"github.com/go-pdf/fpdf"
)

const reportTimeLayout = "02/01/2006 15:04"

// GenerateShiftReportPDF writes the report to dir and returns the file path.
func GenerateShiftReportPDF(report *pos.ShiftReport, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(dir, shiftReportFileName(report))

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: 200},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(true, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8
	separator := func() {
		pdf.Ln(1)
		pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
		pdf.Ln(2)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, "Cierre de Caja", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	if report.ShiftID != nil {
		pdf.CellFormat(contentW, 4, fmt.Sprintf("Turno #%d", *report.ShiftID), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(contentW, 4, tr("Cajero: "+report.CashierName), "", 1, "L", false, 0, "")
	if report.StartedAt != nil {
		pdf.CellFormat(contentW, 4, "Apertura: "+report.StartedAt.Format(reportTimeLayout), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(contentW, 4, "Cierre: "+report.EndedAt.Format(reportTimeLayout), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, "Monto inicial: "+report.OpeningFloat.StringFixed(2), "", 1, "L", false, 0, "")
	separator()

	colLabel := contentW * 0.25
	colNum := contentW * 0.25
	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(colLabel, 5, "", "B", 0, "L", false, 0, "")
	pdf.CellFormat(colNum, 5, "Esperado", "B", 0, "R", false, 0, "")
	pdf.CellFormat(colNum, 5, "Contado", "B", 0, "R", false, 0, "")
	pdf.CellFormat(colNum, 5, "Diferencia", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	rows := []struct {
		label string
		d     pos.Difference
	}{
		{"Efectivo", report.Reconciliation.Cash},
		{"Tarjeta", report.Reconciliation.Card},
		{"Total", report.Reconciliation.Total},
	}
	for _, r := range rows {
		pdf.CellFormat(colLabel, 5, r.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(colNum, 5, r.d.Expected.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(colNum, 5, r.d.Counted.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(colNum, 5, r.d.Label(), "", 1, "R", false, 0, "")
	}
	separator()

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Facturas emitidas: %d", report.Stats.InvoiceCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Total facturado: "+report.Stats.InvoiceTotal.StringFixed(2), "", 1, "L", false, 0, "")
	separator()

	if len(report.Movements) > 0 {
		pdf.SetFont("Helvetica", "B", 7)
		pdf.CellFormat(contentW, 5, "Movimientos", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 6)
		for _, mv := range report.Movements {
			sign := "+"
			if mv.Kind == pos.MovementExpense {
				sign = "-"
			}
			desc := mv.Description
			if len([]rune(desc)) > 34 {
				desc = string([]rune(desc)[:33]) + "..."
			}
			pdf.CellFormat(contentW*0.7, 4, tr(desc), "", 0, "L", false, 0, "")
			pdf.CellFormat(contentW*0.3, 4, fmt.Sprintf("%s%s %s", sign, mv.Amount.StringFixed(2), mv.Method), "", 1, "R", false, 0, "")
		}
		separator()
	}

	if report.Notes != "" {
		pdf.SetFont("Helvetica", "I", 7)
		pdf.MultiCell(contentW, 4, tr("Observaciones: "+report.Notes), "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func shiftReportFileName(report *pos.ShiftReport) string {
	if report.ShiftID != nil {
		return fmt.Sprintf("cierre_turno_%d.pdf", *report.ShiftID)
	}
	return fmt.Sprintf("cierre_%s.pdf", report.EndedAt.Format("20060102_150405"))
}

// ShiftReportSubject is the mail subject for a shift report.
func ShiftReportSubject(report *pos.ShiftReport) string {
	return fmt.Sprintf("Cierre de caja %s - %s", report.EndedAt.Format("02/01/2006"), report.CashierName)
}

// ShiftReportBody is the plain-text mail body accompanying the PDF.
func ShiftReportBody(report *pos.ShiftReport) string {
	r := report.Reconciliation
	started := "-"
	if report.StartedAt != nil {
		started = report.StartedAt.Format(reportTimeLayout)
	}
	return fmt.Sprintf(
		"Cajero: %s\nApertura: %s\nCierre: %s\n\nEfectivo: esperado %s, contado %s (%s)\nTarjeta: esperado %s, contado %s (%s)\n\nFacturas: %d por %s\n",
		report.CashierName, started, report.EndedAt.Format(reportTimeLayout),
		r.Cash.Expected.StringFixed(2), r.Cash.Counted.StringFixed(2), r.Cash.Label(),
		r.Card.Expected.StringFixed(2), r.Card.Counted.StringFixed(2), r.Card.Label(),
		report.Stats.InvoiceCount, report.Stats.InvoiceTotal.StringFixed(2),
	)
}
