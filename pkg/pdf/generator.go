package pdf

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// SummaryEvent is one line of a negotiation timeline.
type SummaryEvent struct {
	Label     string
	Actor     string
	Recipient string
	Timestamp time.Time
}

// OfferSummary is the printable digest of one negotiation.
type OfferSummary struct {
	Title   string
	Parties []string
	Events  []SummaryEvent
}

type Generator interface {
	GenerateSummary(summary OfferSummary) (io.Reader, error)
}

type fpdfGenerator struct{}

func NewGenerator() Generator {
	return &fpdfGenerator{}
}

func (g *fpdfGenerator) GenerateSummary(summary OfferSummary) (io.Reader, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(summary.Title, true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.MultiCell(0, 10, summary.Title, "", "L", false)
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 12)
	doc.Cell(0, 8, "Parties")
	doc.Ln(8)
	doc.SetFont("Helvetica", "", 11)
	for _, party := range summary.Parties {
		doc.Cell(0, 6, party)
		doc.Ln(6)
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 12)
	doc.Cell(0, 8, "Negotiation history")
	doc.Ln(8)
	doc.SetFont("Helvetica", "", 11)
	for _, event := range summary.Events {
		line := fmt.Sprintf("%s  %s by %s", event.Timestamp.Format("2006-01-02 15:04"), event.Label, event.Actor)
		if event.Recipient != "" {
			line += " to " + event.Recipient
		}
		doc.MultiCell(0, 6, line, "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render summary PDF: %w", err)
	}
	return &buf, nil
}
