package infra

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	"github.com/go-pdf/fpdf"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed templates/application.tmpl
var templateFS embed.FS

var applicationTemplate = template.Must(
	template.New("application.tmpl").
		Funcs(template.FuncMap{
			"deref": func(b *bool) bool { return b != nil && *b },
		}).
		ParseFS(templateFS, "templates/application.tmpl"),
)

// applicationData is the input of the application template.
type applicationData struct {
	Session     domain.Session
	GeneratedAt time.Time
}

// PDFExporter writes the application document of a session as a PDF file
// named <session id>.pdf under its directory.
type PDFExporter struct {
	dir string
	now func() time.Time
}

// NewPDFExporter creates an exporter writing into dir. The directory is
// created on first export.
func NewPDFExporter(dir string) *PDFExporter {
	return &PDFExporter{dir: dir, now: time.Now}
}

// Export renders s and returns the path of the written file.
func (e *PDFExporter) Export(ctx context.Context, s domain.Session) (string, error) {
	_, span := tracer.Start(ctx, "PDFExporter.Export")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.ID))

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.ID == "" || strings.ContainsAny(s.ID, `/\`) || s.ID == "." || s.ID == ".." {
		return "", fmt.Errorf("invalid session id %q", s.ID)
	}

	text, err := RenderApplication(s, e.now())
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	var buf bytes.Buffer
	if err := renderPDF(&buf, "Merchant Onboarding Application", e.now(), strings.Split(text, "\n")); err != nil {
		return "", fmt.Errorf("render application pdf: %w", err)
	}
	path := filepath.Join(e.dir, s.ID+".pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write application pdf: %w", err)
	}
	return path, nil
}

// RenderApplication returns the plain-text application document for s.
func RenderApplication(s domain.Session, generatedAt time.Time) (string, error) {
	var buf bytes.Buffer
	if err := applicationTemplate.Execute(&buf, applicationData{Session: s, GeneratedAt: generatedAt}); err != nil {
		return "", fmt.Errorf("render application: %w", err)
	}
	return buf.String(), nil
}

const (
	pdfFontSize   = 10
	pdfLineHeight = 5
)

// pdfSubstitutes covers runes outside cp1252 that the template and merchant
// input commonly carry.
var pdfSubstitutes = strings.NewReplacer("\u20b9", "Rs.", "•", "-", "\t", "    ")

// renderPDF lays lines out on A4 pages in Helvetica and writes the document to w.
func renderPDF(w io.Writer, title string, createdAt time.Time, lines []string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetProducer("merchant-onboarding", false)
	pdf.SetCreationDate(createdAt)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", pdfFontSize)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, line := range lines {
		line = strings.TrimRight(pdfSubstitutes.Replace(line), " \r")
		if line == "" {
			pdf.Ln(pdfLineHeight)
			continue
		}
		pdf.MultiCell(0, pdfLineHeight, tr(line), "", "L", false)
	}
	return pdf.Output(w)
}
