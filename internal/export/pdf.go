package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"student-helpdesk/internal/models"
)

const dateLayout = "2006-01-02 15:04"

type doc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDoc(title string) *doc {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	d := &doc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(0, 10, d.tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, "Generated "+time.Now().Format(dateLayout), "", 1, "L", false, 0, "")
	pdf.Ln(3)
	return d
}

func (d *doc) heading(s string) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Helvetica", "B", 11)
	d.pdf.CellFormat(0, 7, d.tr(s), "B", 1, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 9)
}

func (d *doc) field(label, value string) {
	d.pdf.SetFont("Helvetica", "B", 9)
	d.pdf.CellFormat(35, 6, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 9)
	d.pdf.MultiCell(0, 6, d.tr(value), "", "L", false)
}

func (d *doc) counts(title string, rows []models.CountByKey) {
	if len(rows) == 0 {
		return
	}
	d.heading(title)
	for _, c := range rows {
		d.pdf.CellFormat(60, 6, d.tr(c.Key), "", 0, "L", false, 0, "")
		d.pdf.CellFormat(20, 6, strconv.Itoa(c.Count), "", 1, "R", false, 0, "")
	}
}

func (d *doc) output(w io.Writer) error {
	if err := d.pdf.Error(); err != nil {
		return err
	}
	return d.pdf.Output(w)
}

// ReportPDF renders the summary stats (optional) followed by a ticket table.
func ReportPDF(w io.Writer, stats *models.TicketStats, tickets []models.Ticket, role string) error {
	d := newDoc("Helpdesk Ticket Report")

	if stats != nil {
		d.heading("Summary")
		d.field("Total", strconv.Itoa(stats.Total))
		d.field("Anonymous", strconv.Itoa(stats.Anonymous))
		d.field("Unread by staff", strconv.Itoa(stats.UnreadForAdmin))
		d.field("Resolved (7 days)", strconv.Itoa(stats.Resolved7d))
		d.counts("By status", stats.ByStatus)
		d.counts("By category", stats.ByCategory)
		d.counts("By month", stats.ByMonth)
	}

	d.heading(fmt.Sprintf("Tickets (%d)", len(tickets)))
	widths := []float64{28, 22, 30, 70, 40}
	d.pdf.SetFont("Helvetica", "B", 8)
	d.pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Created", "Status", "Category", "Title", "Reporter"} {
		d.pdf.CellFormat(widths[i], 6, h, "1", 0, "L", true, 0, "")
	}
	d.pdf.Ln(-1)
	d.pdf.SetFont("Helvetica", "", 8)
	for _, t := range tickets {
		v := t.ViewFor(role)
		reporter := deref(v.Name)
		if reporter == "" && v.Anonymous {
			reporter = "Anonymous"
		}
		cells := []string{v.CreatedAt.Format(dateLayout), string(v.Status), v.Category, v.Title, reporter}
		for i, c := range cells {
			d.pdf.CellFormat(widths[i], 6, d.tr(truncate(c, int(widths[i]/1.6))), "1", 0, "L", false, 0, "")
		}
		d.pdf.Ln(-1)
	}
	return d.output(w)
}

// TicketPDF renders a single ticket with its feedback thread.
func TicketPDF(w io.Writer, t models.Ticket, feedbacks []models.Feedback, role string) error {
	v := t.ViewFor(role)
	d := newDoc("Ticket: " + v.Title)

	d.heading("Details")
	d.field("ID", v.ID)
	d.field("Status", string(v.Status))
	d.field("Category", v.Category+" / "+v.SubCategory)
	d.field("Created", v.CreatedAt.Format(dateLayout))
	d.field("Updated", v.UpdatedAt.Format(dateLayout))
	if v.AssigneeName != "" {
		d.field("Assignee", v.AssigneeName)
	}

	d.heading("Reporter")
	if v.Anonymous && v.Name == nil {
		d.field("Reporter", "Anonymous")
	} else {
		d.field("Name", deref(v.Name))
		d.field("NIM", deref(v.NIM))
		d.field("Program", deref(v.Program))
		d.field("Phone", deref(v.Phone))
	}

	d.heading("Description")
	d.pdf.MultiCell(0, 5, d.tr(v.Description), "", "L", false)
	if v.Attachment != nil {
		d.field("Attachment", v.Attachment.Name)
	}

	if len(feedbacks) > 0 {
		d.heading(fmt.Sprintf("Feedback (%d)", len(feedbacks)))
		// the reporter's own messages would otherwise name them
		hideReporter := v.Anonymous && !models.IsStaff(role)
		for _, f := range feedbacks {
			author := fmt.Sprintf("%s (%s)", f.AuthorName, f.AuthorRole)
			if hideReporter && f.AuthorID == t.UserID {
				author = "Anonymous"
			}
			d.pdf.SetFont("Helvetica", "B", 9)
			d.pdf.CellFormat(0, 6, d.tr(author+", "+f.CreatedAt.Format(dateLayout)), "", 1, "L", false, 0, "")
			d.pdf.SetFont("Helvetica", "", 9)
			d.pdf.MultiCell(0, 5, d.tr(f.Message), "", "L", false)
			d.pdf.Ln(1)
		}
	}
	return d.output(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
