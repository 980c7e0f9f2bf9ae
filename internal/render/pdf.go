package render

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/swms-manager/internal/swms"
)

const (
	pageMargin   = 15.0
	bottomMargin = 20.0
	cellPad      = 2.0
	lineHeight   = 5.0
)

var (
	labelFill  = swms.RGB{R: 249, G: 250, B: 251}
	ruleGray   = swms.RGB{R: 200, G: 200, B: 200}
	borderGray = swms.RGB{R: 229, G: 231, B: 235}
)

// pdfWriter tracks the cursor so page breaks can be decided before a block is drawn.
type pdfWriter struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	width  float64
	height float64
	y      float64
}

func newPDFWriter() *pdfWriter {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	w, h := pdf.GetPageSize()
	return &pdfWriter{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		width:  w,
		height: h,
	}
}

func (w *pdfWriter) fill(c swms.RGB) { w.pdf.SetFillColor(int(c.R), int(c.G), int(c.B)) }
func (w *pdfWriter) text(c swms.RGB) { w.pdf.SetTextColor(int(c.R), int(c.G), int(c.B)) }
func (w *pdfWriter) stroke(c swms.RGB) { w.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B)) }

func (w *pdfWriter) textAt(x, y float64, s string) {
	w.pdf.Text(x, y, w.tr(s))
}

func (w *pdfWriter) textRight(x, y float64, s string) {
	s = w.tr(s)
	w.pdf.Text(x-w.pdf.GetStringWidth(s), y, s)
}

func (w *pdfWriter) textCenter(y float64, s string) {
	s = w.tr(s)
	w.pdf.Text((w.width-w.pdf.GetStringWidth(s))/2, y, s)
}

func (w *pdfWriter) contentWidth() float64 { return w.width - 2*pageMargin }

// ensure starts a new page when the next h millimetres would run into the footer.
func (w *pdfWriter) ensure(h float64) {
	if w.y+h > w.height-bottomMargin {
		w.pdf.AddPage()
		w.y = bottomMargin
	}
}

func (w *pdfWriter) section(title string, color swms.RGB) {
	w.ensure(20)
	w.pdf.SetFont("Helvetica", "B", 14)
	w.text(color)
	w.textAt(pageMargin, w.y, title)
	w.y += 5
}

type table struct {
	head     []string
	widths   []float64
	headFill swms.RGB
	// labelColumn shades and bolds the first column of every body row.
	labelColumn bool
}

func (w *pdfWriter) rowHeight(widths []float64, cells []string) float64 {
	lines := 1
	for i, c := range cells {
		n := len(w.pdf.SplitLines([]byte(w.tr(c)), widths[i]-2*cellPad))
		if n > lines {
			lines = n
		}
	}
	return float64(lines)*lineHeight + 2*cellPad
}

func (w *pdfWriter) drawRow(t table, cells []string, header bool) {
	x := pageMargin
	h := w.rowHeight(t.widths, cells)
	for i, c := range cells {
		style, fill := "", false
		switch {
		case header:
			style, fill = "B", true
			w.fill(t.headFill)
			w.text(white)
		case t.labelColumn && i == 0:
			style, fill = "B", true
			w.fill(labelFill)
			w.text(black)
		default:
			w.text(black)
		}
		w.pdf.SetFont("Helvetica", style, 10)
		w.stroke(borderGray)
		rectStyle := "D"
		if fill {
			rectStyle = "FD"
		}
		w.pdf.Rect(x, w.y, t.widths[i], h, rectStyle)
		w.pdf.SetXY(x+cellPad, w.y+cellPad)
		w.pdf.MultiCell(t.widths[i]-2*cellPad, lineHeight, w.tr(c), "", "L", false)
		x += t.widths[i]
	}
	w.y += h
}

func (w *pdfWriter) table(t table, rows [][]string) {
	if len(t.head) > 0 {
		w.ensure(w.rowHeight(t.widths, t.head) + lineHeight)
		w.drawRow(t, t.head, true)
	}
	for _, row := range rows {
		h := w.rowHeight(t.widths, row)
		if w.y+h > w.height-bottomMargin {
			w.pdf.AddPage()
			w.y = bottomMargin
			if len(t.head) > 0 {
				w.drawRow(t, t.head, true)
			}
		}
		w.drawRow(t, row, false)
	}
	w.y += 10
}

func (w *pdfWriter) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF renders the full printable statement: project and company details,
// emergency contacts, job steps with risk badges and worker sign-offs.
func PDF(doc swms.Document, company swms.Company, signOffs []swms.SignOff) ([]byte, error) {
	w := newPDFWriter()
	brand := ParseHex(company.BrandColor())
	name := company.DisplayName()
	short := doc.ShortID()

	w.pdf.AliasNbPages("")
	w.pdf.SetFooterFunc(func() {
		w.stroke(ruleGray)
		w.pdf.SetLineWidth(0.2)
		w.pdf.Line(pageMargin, w.height-15, w.width-pageMargin, w.height-15)
		w.pdf.SetFont("Helvetica", "", 8)
		w.text(mutedGray)
		w.textAt(pageMargin, w.height-10, name)
		w.textCenter(w.height-10, "Document ID: "+short)
		w.textRight(w.width-pageMargin, w.height-10, "Page "+strconv.Itoa(w.pdf.PageNo())+" of {nb}")
	})
	w.pdf.AddPage()

	w.fill(brand)
	w.pdf.Rect(0, 0, w.width, 40, "F")
	w.text(white)
	w.pdf.SetFont("Helvetica", "B", 24)
	w.textAt(pageMargin, 20, name)
	w.pdf.SetFont("Helvetica", "", 12)
	w.textAt(pageMargin, 30, "Safe Work Method Statement")
	w.y = 50

	half := w.contentWidth() / 2
	details := table{head: []string{"Field", "Information"}, widths: []float64{half - 20, half + 20}, headFill: brand, labelColumn: true}

	w.section("Project Details", brand)
	w.table(details, [][]string{
		{"Project Name", orDash(doc.ProjectName)},
		{"Location", orDash(doc.Location)},
		{"Activity", orDash(doc.Activity)},
		{"Date", orDash(doc.Date)},
		{"Supervisor", orDash(doc.Supervisor)},
		{"Supervisor Phone", orDash(doc.SupervisorPhone)},
	})

	w.section("Company Details", brand)
	w.table(details, [][]string{
		{"Organization", orDash(orDefault(doc.Company.OrgName, company.Name))},
		{"ACN/ABN", orDash(orDefault(doc.Company.AcnAbn, company.AcnAbn))},
		{"Contact Name", orDash(doc.Company.ContactName)},
		{"Contact Number", orDash(doc.Company.ContactNumber)},
		{"Prepared By", orDash(doc.Company.PreparedBy)},
	})

	w.emergency(doc.Emergency)
	w.jobSteps(doc.JobSteps, brand)
	w.signOffs(signOffs, brand)

	return w.bytes()
}

func (w *pdfWriter) emergency(e swms.EmergencyContacts) {
	w.section("Emergency Contacts", alertRed)
	w.ensure(35)
	w.fill(alertRed)
	w.pdf.Rect(pageMargin, w.y, w.contentWidth(), 25, "F")
	w.text(white)
	w.pdf.SetFont("Helvetica", "B", 12)
	w.textCenter(w.y+8, "IN EMERGENCY DIAL")
	w.pdf.SetFont("Helvetica", "B", 28)
	w.textCenter(w.y+20, swms.EmergencyNumber)
	w.y += 30

	cw := w.contentWidth()
	w.table(table{
		head:        []string{"Service", "Details", "Contact"},
		widths:      []float64{cw * 0.3, cw * 0.45, cw * 0.25},
		headFill:    alertRed,
		labelColumn: true,
	}, [][]string{
		{"Police Station", orDash(e.NearestPolice), orDash(e.PolicePhone)},
		{"Medical Centre", orDash(e.NearestMedical), orDash(e.MedicalPhone)},
		{"Dial Before You Dig", "Underground services", swms.DialBeforeYouDig},
	})
}

func (w *pdfWriter) badge(x float64, prefix string, rank swms.RiskRank) {
	level := swms.LookupRisk(rank)
	w.fill(level.Color)
	w.pdf.Rect(x, w.y, 35, 6, "F")
	w.text(white)
	w.pdf.SetFont("Helvetica", "B", 8)
	w.textAt(x+2, w.y+4, prefix+": "+level.Label)
}

func (w *pdfWriter) jobSteps(steps []swms.JobStep, brand swms.RGB) {
	w.section("Job Steps & Risk Assessment", brand)
	if len(steps) == 0 {
		w.noRows("No job steps have been added")
		return
	}
	cw := w.contentWidth()
	for i, step := range steps {
		w.ensure(40)
		w.pdf.SetFont("Helvetica", "B", 12)
		w.text(black)
		w.textAt(pageMargin, w.y+5, fmt.Sprintf("Step %d: %s", i+1, orDefault(step.Name, "Untitled step")))
		w.y += 8

		w.badge(pageMargin, "Initial", step.InitialRisk)
		w.badge(pageMargin+37, "Residual", step.ResidualRisk)
		w.y += 9

		var rows [][]string
		for _, f := range [][2]string{
			{"Preparation", step.Preparation},
			{"Hazards", step.Hazards},
			{"Control Measures", step.Controls},
			{"Responsible Person(s)", step.Responsible},
		} {
			if f[1] != "" {
				rows = append(rows, []string{f[0], f[1]})
			}
		}
		if len(rows) == 0 {
			w.y += 4
			continue
		}
		w.table(table{widths: []float64{45, cw - 45}, labelColumn: true}, rows)
		w.y -= 4
	}
	w.y += 6
}

func (w *pdfWriter) signOffs(signOffs []swms.SignOff, brand swms.RGB) {
	w.section("Worker Sign-Offs", brand)
	if len(signOffs) == 0 {
		w.noRows("No workers have signed off yet")
		return
	}
	cw := w.contentWidth()
	rows := make([][]string, 0, len(signOffs))
	for _, so := range signOffs {
		signed := "—"
		if !so.SignedAt.IsZero() {
			signed = so.SignedAt.Local().Format("02/01/2006")
		}
		rows = append(rows, []string{orDash(so.WorkerName), orDash(so.WorkerCompany), orDash(so.WorkerPosition), signed})
	}
	w.table(table{
		head:     []string{"Name", "Company", "Position", "Date Signed"},
		widths:   []float64{cw * 0.3, cw * 0.28, cw * 0.24, cw * 0.18},
		headFill: brand,
	}, rows)
}

func (w *pdfWriter) noRows(msg string) {
	w.pdf.SetFont("Helvetica", "I", 10)
	w.text(mutedGray)
	w.textAt(pageMargin, w.y+5, msg)
	w.y += 15
}
