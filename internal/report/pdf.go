package report

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
)

// Page geometry in points
const (
	pageSize   = "A4"
	pageMargin = 50.0
	fontFamily = "DejaVu"
)

// DejaVu Sans Condensed, as shipped with go-pdf/fpdf
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	regularFont []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	boldFont []byte
)

// lastRune is the highest code point the UTF-8 font tables of fpdf index
const lastRune = 0xFFFF

type rgb struct{ r, g, b int }

var (
	accentColor  = rgb{0x0B, 0x6F, 0xA4}
	headingColor = rgb{0x33, 0x33, 0x33}
	bodyColor    = rgb{0x00, 0x00, 0x00}
)

// Style is the visual treatment of a block role
type Style struct {
	FontSize    float64
	Bold        bool
	Color       rgb
	Align       string
	Leading     float64
	SpaceBefore float64
	SpaceAfter  float64
}

var (
	titleStyle   = Style{FontSize: 16, Bold: true, Color: accentColor, Align: "C", Leading: 20, SpaceAfter: 12}
	headingStyle = Style{FontSize: 12, Bold: true, Color: headingColor, Align: "L", Leading: 15, SpaceBefore: 12, SpaceAfter: 8}
	sectionStyle = Style{FontSize: 10, Color: bodyColor, Align: "L", Leading: 14, SpaceAfter: 6}
)

// StyleFor returns the style of a block kind
func StyleFor(kind BlockKind) Style {
	switch kind {
	case BlockTitle:
		return titleStyle
	case BlockHeading:
		return headingStyle
	default:
		return sectionStyle
	}
}

// pdfWriter draws a laid-out document with an embedded Unicode font
type pdfWriter struct {
	pdf *fpdf.Fpdf
}

// WritePDF renders the document as PDF into w
func WritePDF(doc *Document, w io.Writer) error {
	pdf := fpdf.New("P", "pt", pageSize, "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetCreationDate(doc.GeneratedAt)
	title, err := pdfText(doc.Title)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("medinsight", false)
	pdf.AddUTF8FontFromBytes(fontFamily, "", regularFont)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", boldFont)
	if pdf.Err() {
		return fmt.Errorf("load font: %w", pdf.Error())
	}
	pdf.AddPage()

	pw := &pdfWriter{pdf: pdf}
	for i, b := range doc.Blocks {
		if err := pw.block(b); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, b.Kind, err)
		}
		if pdf.Err() {
			return fmt.Errorf("block %d (%s): %w", i, b.Kind, pdf.Error())
		}
	}

	return pdf.Output(w)
}

func (w *pdfWriter) block(b Block) error {
	switch b.Kind {
	case BlockSpacer:
		w.pdf.Ln(b.Height)
		return nil

	case BlockTitle, BlockHeading, BlockTimestamp:
		style := StyleFor(b.Kind)
		text, err := pdfText(b.Label)
		if err != nil {
			return err
		}
		if style.SpaceBefore > 0 {
			w.pdf.Ln(style.SpaceBefore)
		}
		w.setFont(style, style.Bold, style.Color)
		w.pdf.MultiCell(0, style.Leading, text, "", style.Align, false)
		w.pdf.Ln(style.SpaceAfter)
		return nil

	case BlockSubHeading, BlockItemHeading:
		return w.segments(b, segment{text: b.Indent()}, segment{text: b.Label + ":", bold: true})

	case BlockLine:
		return w.segments(b,
			segment{text: b.Indent()},
			segment{text: b.Label + ":", bold: true},
			segment{text: " "},
			valueSegment(b),
		)

	case BlockBullet:
		return w.segments(b, segment{text: b.Indent() + "• "}, valueSegment(b))

	case BlockParagraph:
		return w.segments(b, segment{text: b.Indent()}, valueSegment(b))

	default:
		return fmt.Errorf("unknown block kind %d", b.Kind)
	}
}

type segment struct {
	text     string
	bold     bool
	emphasis bool
}

func valueSegment(b Block) segment {
	return segment{text: b.Value, bold: b.Emphasis, emphasis: b.Emphasis}
}

// segments writes one flowing line made of differently styled runs
func (w *pdfWriter) segments(b Block, segs ...segment) error {
	style := StyleFor(b.Kind)
	for _, s := range segs {
		if s.text == "" {
			continue
		}
		text, err := pdfText(s.text)
		if err != nil {
			return err
		}
		color := style.Color
		if s.emphasis {
			color = accentColor
		}
		w.setFont(style, s.bold, color)
		w.pdf.Write(style.Leading, text)
	}
	w.pdf.Ln(style.Leading)
	w.pdf.Ln(style.SpaceAfter)
	return nil
}

func (w *pdfWriter) setFont(style Style, bold bool, c rgb) {
	fontStyle := ""
	if bold {
		fontStyle = "B"
	}
	w.pdf.SetFont(fontFamily, fontStyle, style.FontSize)
	w.pdf.SetTextColor(c.r, c.g, c.b)
}

// pdfText validates text for the font. Invalid UTF-8 is an error; code points
// beyond the Basic Multilingual Plane print as U+FFFD.
func pdfText(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("text %q is not valid UTF-8", truncate(strings.ToValidUTF8(s, "?"), 40))
	}
	return strings.Map(func(r rune) rune {
		if r > lastRune {
			return utf8.RuneError
		}
		return r
	}, s), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
