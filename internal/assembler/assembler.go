// Package assembler renders laid-out pages into a PDF document.
package assembler

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"

	"albumrender/internal/layout"
)

// ErrNoPages is returned when there is nothing to assemble.
var ErrNoPages = errors.New("assembler: no pages to assemble")

const fontFamily = "Helvetica"

// Document is an assembled PDF and its derived metadata.
type Document struct {
	Data      []byte
	PageCount int
}

// Size is the document length in bytes.
func (d *Document) Size() int { return len(d.Data) }

// Metadata is written into the PDF info dictionary. CreatedAt is used for
// both creation and modification dates so output depends only on inputs.
type Metadata struct {
	Title     string
	Author    string
	Subject   string
	CreatedAt time.Time
}

// Assembler turns pages into PDF bytes.
type Assembler struct {
	logger zerolog.Logger
}

// New returns an Assembler.
func New(logger zerolog.Logger) *Assembler {
	return &Assembler{logger: logger}
}

// Assemble renders pages in order. Any embedding failure aborts the whole
// document.
func (a *Assembler) Assemble(pages []layout.Page, meta Metadata) (*Document, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	first := pages[0]
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: first.Width, Ht: first.Height},
	})
	pdf.SetCatalogSort(true)
	pdf.SetCompression(true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetTitle(meta.Title, true)
	pdf.SetAuthor(meta.Author, true)
	pdf.SetSubject(meta.Subject, true)
	pdf.SetCreator("albumrender", false)
	if !meta.CreatedAt.IsZero() {
		pdf.SetCreationDate(meta.CreatedAt)
		pdf.SetModificationDate(meta.CreatedAt)
	}
	pdf.SetTextColor(33, 33, 33)

	for _, page := range pages {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})
		for i, el := range page.Elements {
			switch el.Kind {
			case layout.ElementText:
				drawText(pdf, el)
			case layout.ElementImage:
				if err := drawImage(pdf, page.Number, i, el); err != nil {
					return nil, err
				}
			}
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("assembler: page %d: %w", page.Number, err)
		}
	}

	if pdf.PageCount() != len(pages) {
		return nil, fmt.Errorf("assembler: produced %d pages for %d layouts", pdf.PageCount(), len(pages))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("assembler: output: %w", err)
	}
	a.logger.Debug().Int("pages", len(pages)).Int("bytes", buf.Len()).Msg("assembler: document ready")
	return &Document{Data: buf.Bytes(), PageCount: len(pages)}, nil
}

func drawText(pdf *fpdf.Fpdf, el layout.Element) {
	for _, line := range el.Lines {
		if line.Text == "" {
			continue
		}
		style := ""
		if line.Bold {
			style = "B"
		}
		pdf.SetFont(fontFamily, style, line.Size)
		baseline := line.Box.Y + (line.Box.H+line.Size*0.7)/2
		pdf.Text(line.Box.X, baseline, encode(line.Text))
	}
}

func drawImage(pdf *fpdf.Fpdf, pageNumber, index int, el layout.Element) error {
	if el.Image == nil || len(el.Image.Data) == 0 {
		return fmt.Errorf("assembler: page %d element %d has no image data", pageNumber, index)
	}
	name := fmt.Sprintf("p%d-e%d", pageNumber, index)
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(el.Image.Data))
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("assembler: embed image %s: %w", el.Image.Ref.ID, err)
	}
	pdf.ImageOptions(name, el.Box.X, el.Box.Y, el.Box.W, el.Box.H, false, opts, 0, "")
	return nil
}

// encode maps text to Windows-1252 for the core fonts. Runes outside the
// code page become '?'.
func encode(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return string(out)
}

// FontMeasurer measures strings with the core font metrics used by the
// assembler. It measures the bold face, the wider of the two, so wrapped
// lines never overflow whichever face they are drawn in.
type FontMeasurer struct {
	mu  sync.Mutex
	pdf *fpdf.Fpdf
}

// NewFontMeasurer returns a measurer backed by fpdf core font metrics.
func NewFontMeasurer() *FontMeasurer {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetFont(fontFamily, "B", 12)
	return &FontMeasurer{pdf: pdf}
}

func (m *FontMeasurer) StringWidth(text string, size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdf.SetFontSize(size)
	return m.pdf.GetStringWidth(encode(text))
}

var _ layout.Measurer = (*FontMeasurer)(nil)
