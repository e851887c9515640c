// Package pdfdoc lays out the A4 reports the API serves: bold section
// headings, wrapped paragraphs, bullets and separators on core Helvetica,
// with text translated to cp1252 so Portuguese accents render.
package pdfdoc

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth  = 210.0
	margin     = 20.0
	bottomEdge = 270.0
	lineHeight = 5.0
)

// ContentWidth is the printable width in millimetres.
const ContentWidth = pageWidth - 2*margin

type Option func(*gofpdf.Fpdf)

// WithoutCompression keeps content streams readable. Used by tests.
func WithoutCompression() Option {
	return func(pdf *gofpdf.Fpdf) { pdf.SetCompression(false) }
}

// Document is a single-column report builder.
type Document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func New(title string, opts ...Option) *Document {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 297-bottomEdge)
	pdf.SetTitle(title, true)
	pdf.SetCreator("SIVIA", true)
	for _, opt := range opts {
		opt(pdf)
	}
	pdf.AddPage()

	return &Document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

// Title writes centred bold text.
func (d *Document) Title(text string, size float64) {
	d.pdf.SetFont("Helvetica", "B", size)
	d.pdf.CellFormat(0, size*0.45, d.tr(text), "", 1, "C", false, 0, "")
	d.pdf.Ln(2)
}

// Centered writes one centred line of normal text.
func (d *Document) Centered(text string, size float64) {
	d.pdf.SetFont("Helvetica", "", size)
	d.pdf.CellFormat(0, 6, d.tr(text), "", 1, "C", false, 0, "")
}

// Separator draws a light rule across the content width.
func (d *Document) Separator() {
	d.rule(ContentWidth, 200)
	d.pdf.Ln(8)
}

// SignatureLine draws a darker rule for a handwritten signature.
func (d *Document) SignatureLine(width float64) {
	d.pdf.Ln(4)
	d.rule(width, 100)
	d.pdf.Ln(2)
}

func (d *Document) rule(width float64, gray int) {
	d.breakIfNeeded(8)
	d.pdf.Ln(2)
	y := d.pdf.GetY()
	d.pdf.SetDrawColor(gray, gray, gray)
	d.pdf.Line(margin, y, margin+width, y)
}

// Heading starts a section.
func (d *Document) Heading(text string, size float64) {
	d.breakIfNeeded(14)
	d.pdf.Ln(3)
	d.pdf.SetFont("Helvetica", "B", size)
	d.pdf.CellFormat(0, 7, d.tr(text), "", 1, "L", false, 0, "")
	d.pdf.Ln(1)
}

// Text writes a wrapped paragraph of normal 10pt text.
func (d *Document) Text(text string) {
	d.write(text, "", 10, 0)
}

// Bold writes a wrapped paragraph of bold text at size.
func (d *Document) Bold(text string, size float64) {
	d.write(text, "B", size, 0)
}

// Italic writes a wrapped paragraph of italic text at size.
func (d *Document) Italic(text string, size float64) {
	d.write(text, "I", size, 0)
}

// Indented writes a wrapped paragraph indented by indent millimetres.
func (d *Document) Indented(text string, indent float64) {
	d.write(text, "", 10, indent)
}

// Bullet writes "• text" indented by 4 mm.
func (d *Document) Bullet(text string) {
	d.write("• "+text, "", 10, 4)
	d.pdf.Ln(1)
}

// Numbered writes "n. text" indented by 4 mm, bold when strong is set.
func (d *Document) Numbered(n int, text string, strong bool) {
	style := ""
	if strong {
		style = "B"
	}
	d.write(fmt.Sprintf("%d. %s", n, text), style, 10, 4)
	d.pdf.Ln(1)
}

// Space adds vertical space in millimetres.
func (d *Document) Space(mm float64) {
	d.pdf.Ln(mm)
}

func (d *Document) write(text, style string, size, indent float64) {
	d.pdf.SetFont("Helvetica", style, size)
	d.pdf.SetX(margin + indent)
	d.pdf.MultiCell(ContentWidth-indent, lineHeight, d.tr(text), "", "L", false)
}

func (d *Document) breakIfNeeded(height float64) {
	if d.pdf.GetY()+height > bottomEdge {
		d.pdf.AddPage()
	}
}

// PageCount returns the number of pages so far.
func (d *Document) PageCount() int {
	return d.pdf.PageCount()
}

// Bytes renders the document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
