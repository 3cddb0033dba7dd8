package infra

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPDFSubstitutes(t *testing.T) {
	got := pdfSubstitutes.Replace("₹499/month\t• GST")
	if got != "Rs.499/month    - GST" {
		t.Errorf("unexpected substitution %q", got)
	}
}

func TestRenderPDF_MultiPage(t *testing.T) {
	lines := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		lines = append(lines, strings.Repeat("Merchant onboarding line ", 8))
	}
	lines = append(lines, "", "Plan fee: ₹1,499")

	var buf bytes.Buffer
	if err := renderPDF(&buf, "Application", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), lines); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "%PDF-") {
		t.Fatal("missing PDF header")
	}
	if n := strings.Count(out, "/Type /Page\n"); n < 2 {
		t.Errorf("expected several pages, got %d", n)
	}
}
