package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"
	"github.com/golang/freetype/truetype"
	"github.com/swms-manager/internal/swms"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	PosterWidth  = 2480
	PosterHeight = 3508
	posterQRSize = 1340
)

var posterSteps = []string{
	"1. Open your phone camera",
	"2. Point it at the QR code below",
	"3. Tap the notification that appears",
	"4. Fill in your details and submit",
}

const posterWarning = "All workers must sign off before starting work"

var (
	fontsOnce   sync.Once
	fontRegular *truetype.Font
	fontBold    *truetype.Font
	fontErr     error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if fontRegular, fontErr = truetype.Parse(goregular.TTF); fontErr != nil {
			return
		}
		fontBold, fontErr = truetype.Parse(gobold.TTF)
	})
	return fontErr
}

func face(bold bool, size float64) font.Face {
	f := fontRegular
	if bold {
		f = fontBold
	}
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// PosterFileName is the download name for a sign-off poster.
func PosterFileName(doc swms.Document, ext string) string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, orDefault(doc.ProjectName, "SWMS"))
	return fmt.Sprintf("QR_SignOff_%s.%s", name, ext)
}

// posterContact prefers the supervisor's phone, then the company contact.
func posterContact(doc swms.Document) string {
	switch {
	case strings.TrimSpace(doc.SupervisorPhone) != "":
		return doc.SupervisorPhone
	case strings.TrimSpace(doc.Company.ContactNumber) != "":
		return doc.Company.ContactNumber
	default:
		return "Contact via site"
	}
}

type posterCanvas struct {
	dc *gg.Context
}

func (p posterCanvas) rgb(c swms.RGB) { p.dc.SetRGB255(int(c.R), int(c.G), int(c.B)) }

// fit shrinks the face until s fits within maxWidth.
func (p posterCanvas) fit(s string, bold bool, size, maxWidth float64) {
	for ; size > 12; size -= 4 {
		p.dc.SetFontFace(face(bold, size))
		if w, _ := p.dc.MeasureString(s); w <= maxWidth {
			return
		}
	}
}

func (p posterCanvas) text(s string, bold bool, size, x, y, ax float64) {
	p.fit(s, bold, size, float64(PosterWidth)-2*180)
	p.dc.DrawStringAnchored(s, x, y, ax, 0)
}

// PosterPNG draws the A4 sign-off poster at 300 dpi around the given QR bitmap.
func PosterPNG(doc swms.Document, company swms.Company, qr image.Image) ([]byte, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}
	const w, h = float64(PosterWidth), float64(PosterHeight)
	brand := ParseHex(company.BrandColor())
	p := posterCanvas{dc: gg.NewContext(PosterWidth, PosterHeight)}
	dc := p.dc

	p.rgb(white)
	dc.Clear()

	p.rgb(brand)
	dc.DrawRectangle(0, 0, w, 410)
	dc.Fill()
	p.rgb(white)
	p.text(company.DisplayName(), true, 90, w/2, 180, 0.5)
	p.text("Safe Work Method Statement - Worker Sign-Off", false, 45, w/2, 300, 0.5)

	p.rgb(brand)
	dc.SetLineWidth(6)
	dc.DrawRectangle(180, 490, w-360, 210)
	dc.Stroke()
	p.rgb(black)
	p.text("Site Supervisor:", true, 48, 240, 560, 0)
	p.text("Contact:", true, 48, w-240, 560, 1)
	p.text(orDefault(doc.Supervisor, "N/A"), false, 42, 240, 630, 0)
	p.text(posterContact(doc), false, 42, w-240, 630, 1)

	p.text("Project:", true, 56, w/2, 860, 0.5)
	p.text(orDefault(doc.ProjectName, "Unnamed Project"), true, 52, w/2, 940, 0.5)
	dc.SetRGB255(80, 80, 80)
	p.text("Location: "+orDefault(doc.Location, "N/A"), false, 42, w/2, 1000, 0.5)
	p.text("Date: "+orDefault(doc.Date, "N/A"), false, 42, w/2, 1060, 0.5)

	dc.SetRGB255(240, 249, 255)
	dc.DrawRectangle(180, 1150, w-360, 445)
	dc.Fill()
	p.rgb(brand)
	dc.SetLineWidth(12)
	dc.DrawRectangle(180, 1150, w-360, 445)
	dc.Stroke()
	p.text("How to Sign Off:", true, 56, 260, 1250, 0)
	p.rgb(black)
	for i, line := range posterSteps {
		p.text(line, false, 48, 260, 1350+float64(i)*70, 0)
	}

	qrX := (w - posterQRSize) / 2
	qrY := 1730.0
	p.rgb(brand)
	dc.DrawRectangle(qrX-90, qrY-90, posterQRSize+180, posterQRSize+180)
	dc.Fill()
	p.rgb(white)
	dc.DrawRectangle(qrX-60, qrY-60, posterQRSize+120, posterQRSize+120)
	dc.Fill()
	dc.DrawImage(scaleTo(qr, posterQRSize), int(qrX), int(qrY))

	p.rgb(brand)
	p.text("SCAN WITH PHONE CAMERA", true, 65, w/2, qrY+posterQRSize+120, 0.5)

	dc.SetRGB255(120, 120, 120)
	p.text("Document ID: "+orDefault(doc.ShortID(), "N/A"), false, 38, w/2, h-210, 0.5)
	p.rgb(alertRed)
	p.text(posterWarning, true, 52, w/2, h-120, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode poster: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleTo resizes with nearest neighbour so QR modules stay crisp.
func scaleTo(src image.Image, size int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// PosterPDF is the A4 vector version of the poster with the QR embedded as PNG.
func PosterPDF(doc swms.Document, company swms.Company, qr image.Image) ([]byte, error) {
	qrPNG, err := EncodePNG(qr)
	if err != nil {
		return nil, err
	}
	w := newPDFWriter()
	brand := ParseHex(company.BrandColor())
	w.pdf.AddPage()

	w.fill(brand)
	w.pdf.Rect(0, 0, w.width, 35, "F")
	w.text(white)
	w.pdf.SetFont("Helvetica", "B", 24)
	w.textCenter(18, company.DisplayName())
	w.pdf.SetFont("Helvetica", "", 11)
	w.textCenter(28, "Safe Work Method Statement - Worker Sign-Off")

	w.stroke(brand)
	w.pdf.SetLineWidth(0.5)
	w.pdf.Rect(pageMargin, 42, 180, 18, "D")
	w.text(black)
	w.pdf.SetFont("Helvetica", "B", 10)
	w.textAt(20, 49, "Site Supervisor:")
	w.textAt(w.width-70, 49, "Contact:")
	w.pdf.SetFont("Helvetica", "", 10)
	w.textAt(20, 55, orDefault(doc.Supervisor, "N/A"))
	w.textAt(w.width-70, 55, posterContact(doc))

	w.pdf.SetFont("Helvetica", "B", 12)
	w.textCenter(73, "Project:")
	w.pdf.SetFont("Helvetica", "B", 11)
	w.textCenter(80, orDefault(doc.ProjectName, "Unnamed Project"))
	w.pdf.SetFont("Helvetica", "", 9)
	w.pdf.SetTextColor(80, 80, 80)
	w.textCenter(86, "Location: "+orDefault(doc.Location, "N/A"))
	w.textCenter(91, "Date: "+orDefault(doc.Date, "N/A"))

	w.pdf.SetFillColor(240, 249, 255)
	w.pdf.SetLineWidth(1)
	w.pdf.Rect(pageMargin, 98, 180, 38, "FD")
	w.text(brand)
	w.pdf.SetFont("Helvetica", "B", 12)
	w.textAt(22, 107, "How to Sign Off:")
	w.text(black)
	w.pdf.SetFont("Helvetica", "", 10)
	for i, line := range posterSteps {
		w.textAt(22, 116+float64(i)*6, line)
	}

	const qrSize = 115.0
	qrX := (w.width - qrSize) / 2
	qrY := 148.0
	w.fill(brand)
	w.pdf.Rect(qrX-7.5, qrY-7.5, qrSize+15, qrSize+15, "F")
	w.fill(white)
	w.pdf.Rect(qrX-5, qrY-5, qrSize+10, qrSize+10, "F")
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	w.pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	w.pdf.ImageOptions("qr", qrX, qrY, qrSize, qrSize, false, opts, 0, "")

	w.text(brand)
	w.pdf.SetFont("Helvetica", "B", 14)
	w.textCenter(qrY+qrSize+10, "SCAN WITH PHONE CAMERA")

	w.pdf.SetFont("Helvetica", "", 8)
	w.pdf.SetTextColor(120, 120, 120)
	w.textCenter(w.height-18, "Document ID: "+orDefault(doc.ShortID(), "N/A"))
	w.text(alertRed)
	w.pdf.SetFont("Helvetica", "B", 11)
	w.textCenter(w.height-10, posterWarning)

	return w.bytes()
}
