package card

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/janasewa/membership-go/internal/domain"
)

// ID-1 card dimensions in millimeters.
const (
	cardWidthMM  = 85.6
	cardHeightMM = 53.98
)

const backQRSizePixels = 128

// renderCardPDF: produces the two-sided card document. Page one carries the
// organization header, holder name, location and validity window; page two
// carries the verification header and a QR encoding just the membership
// number. Content depends only on the member record and template, so the
// result is cacheable per (member, template); the PDF creation timestamp
// still differs between runs, so output is not byte-identical.
func renderCardPDF(record *domain.MemberRecord, template, issuer string, validUntil time.Time) ([]byte, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: cardWidthMM, Ht: cardHeightMM},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 0)

	drawFront(pdf, record, template, issuer, validUntil)
	if err := drawBack(pdf, record); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawFront(pdf *gofpdf.Fpdf, record *domain.MemberRecord, template, issuer string, validUntil time.Time) {
	pdf.AddPage()

	headerR, headerG, headerB := 25, 60, 110
	if template == "premium" {
		headerR, headerG, headerB = 110, 80, 15
	}

	pdf.SetFillColor(headerR, headerG, headerB)
	pdf.Rect(0, 0, cardWidthMM, 12, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetXY(4, 3)
	pdf.CellFormat(cardWidthMM-8, 6, issuer, "", 0, "C", false, 0, "")

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(4, 16)
	pdf.CellFormat(cardWidthMM-8, 7, record.FullName(), "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	y := 25.0
	rows := []struct{ label, value string }{
		{"Member No", record.MemberNo},
		{"Type", record.MembershipType},
		{"Address", record.Location()},
	}
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		pdf.SetXY(4, y)
		pdf.CellFormat(20, 4.5, row.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(cardWidthMM-28, 4.5, row.value, "", 0, "L", false, 0, "")
		y += 5
	}

	pdf.SetFont("Helvetica", "I", 7)
	pdf.SetTextColor(90, 90, 90)
	pdf.SetXY(4, cardHeightMM-9)
	validity := "Valid until " + validUntil.Format(time.DateOnly)
	if record.JoinedAt != nil {
		validity = "Member since " + record.JoinedAt.Format(time.DateOnly) + " · " + validity
	}
	pdf.CellFormat(cardWidthMM-8, 4, validity, "", 0, "L", false, 0, "")
}

func drawBack(pdf *gofpdf.Fpdf, record *domain.MemberRecord) error {
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetXY(4, 4)
	pdf.CellFormat(cardWidthMM-8, 5, "Membership Verification", "", 0, "C", false, 0, "")

	if record.MemberNo != "" {
		qrPNG, err := encodeQR(record.MemberNo, backQRSizePixels)
		if err != nil {
			return err
		}

		imageName := "verify-" + record.ID
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(qrPNG))

		const qrMM = 30.0
		pdf.ImageOptions(imageName, (cardWidthMM-qrMM)/2, 12, qrMM, qrMM, false, opts, 0, "")

		pdf.SetFont("Helvetica", "", 7)
		pdf.SetXY(4, cardHeightMM-9)
		pdf.CellFormat(cardWidthMM-8, 4, record.MemberNo, "", 0, "C", false, 0, "")
	}

	return nil
}
