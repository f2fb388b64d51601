package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/go-pdf/fpdf"
)

// DocumentWriter paginates rendered card images into a document.
type DocumentWriter func(w io.Writer, cards []image.Image) error

const (
	pdfMargin       = 20.0 // points
	pdfCardsPerRow  = 2
	pdfRowsPerPage  = 2
	pdfCardsPerPage = pdfCardsPerRow * pdfRowsPerPage
)

// WritePDF lays the cards out four to an A4 page in a 2x2 grid, each
// with a small index caption.
func WritePDF(w io.Writer, cards []image.Image) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pageW, pageH := pdf.GetPageSize()
	slotW := (pageW - pdfMargin*float64(pdfCardsPerRow+1)) / pdfCardsPerRow
	slotH := (pageH - pdfMargin*float64(pdfRowsPerPage+1)) / pdfRowsPerPage
	pdf.SetFont("Helvetica", "", 8)

	for i, card := range cards {
		if i%pdfCardsPerPage == 0 {
			pdf.AddPage()
		}
		slot := i % pdfCardsPerPage
		col := slot % pdfCardsPerRow
		row := slot / pdfCardsPerRow
		x := pdfMargin + float64(col)*(slotW+pdfMargin)
		y := pdfMargin + float64(row)*(slotH+pdfMargin)

		var buf bytes.Buffer
		if err := png.Encode(&buf, card); err != nil {
			return fmt.Errorf("render: encoding card %d: %w", i, err)
		}
		name := fmt.Sprintf("card-%03d", i)
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, &buf)

		// Preserve the card's aspect ratio inside its slot.
		b := card.Bounds()
		scale := math.Min(slotW/float64(b.Dx()), slotH/float64(b.Dy()))
		cw := float64(b.Dx()) * scale
		ch := float64(b.Dy()) * scale
		cx := x + (slotW-cw)/2
		cy := y + (slotH-ch)/2
		pdf.ImageOptions(name, cx, cy, cw, ch, false, opts, 0, "")
		pdf.Text(x+4, y+slotH-4, fmt.Sprintf("Card #%d", i+1))
	}
	if pdf.Err() {
		return fmt.Errorf("render: %v", pdf.Error())
	}
	return pdf.Output(w)
}
