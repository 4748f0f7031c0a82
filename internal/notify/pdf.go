package notify

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/dmehra2102/boutique-orders/internal/order/domain"
)

// PDF lays out Summary on an A4 page for download.
func (f Formatter) PDF(q domain.Quote) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCreationDate(q.CreatedAt)
	doc.SetTitle(f.Subject(q), true)
	doc.SetAuthor(f.ShopName, true)
	doc.AddPage()

	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, tr(f.ShopName), "", 1, "L", false, 0, "")
	doc.Ln(2)
	doc.SetFont("Helvetica", "", 11)
	doc.MultiCell(0, 5.5, tr(f.Summary(q)), "", "L", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf for %s: %w", q.ID, err)
	}
	return buf.Bytes(), nil
}
