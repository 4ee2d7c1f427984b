// Package pdftest builds small PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

// Letter returns a US Letter (612x792 pt) document with the given number of
// pages, each carrying its page number.
func Letter(t testing.TB, pages int) []byte {
	t.Helper()

	doc := gofpdf.New("P", "pt", "Letter", "")
	doc.SetFont("Helvetica", "", 14)
	for i := 1; i <= pages; i++ {
		doc.AddPage()
		doc.Cell(200, 20, fmt.Sprintf("Page %d", i))
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("build fixture pdf: %v", err)
	}
	return buf.Bytes()
}
