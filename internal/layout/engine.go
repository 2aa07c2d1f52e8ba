package layout

import (
	"fmt"
	"strings"
	"time"

	"albumrender/internal/domain"
	"albumrender/internal/resolver"
)

// Style holds the typographic and spacing constants used by the engine.
type Style struct {
	HeadingSize float64
	BodySize    float64
	// Leading is the line height as a multiple of the font size.
	Leading  float64
	BlockGap float64
	PostGap  float64
	GridGap  float64
	// SingleImageShare caps a lone image at this fraction of the content height.
	SingleImageShare float64
	DateLayout       string
}

// DefaultStyle returns the album's standard typography.
func DefaultStyle() Style {
	return Style{
		HeadingSize:      12,
		BodySize:         11,
		Leading:          1.35,
		BlockGap:         8,
		PostGap:          18,
		GridGap:          6,
		SingleImageShare: 0.7,
		DateLayout:       "2 January 2006",
	}
}

// ElementKind distinguishes placed elements.
type ElementKind string

const (
	ElementText  ElementKind = "text"
	ElementImage ElementKind = "image"
)

// Line is one line of a text element together with its line box.
type Line struct {
	Text string
	Size float64
	Bold bool
	Box  Rect
}

// Element is a text block or image rectangle placed on a page.
type Element struct {
	Kind   ElementKind
	PostID string
	Box    Rect
	Lines  []Line
	Image  *resolver.ResolvedImage
}

// Page is one fixed-size canvas and the elements placed on it.
type Page struct {
	Number   int
	Width    float64
	Height   float64
	Content  Rect
	Elements []Element
}

// PostIDs returns the distinct posts present on the page in placement order.
func (p Page) PostIDs() []string {
	var ids []string
	seen := map[string]bool{}
	for _, el := range p.Elements {
		if !seen[el.PostID] {
			seen[el.PostID] = true
			ids = append(ids, el.PostID)
		}
	}
	return ids
}

// Input is a post with the resolution outcome of each of its images, in the
// same order as Post.Images.
type Input struct {
	Post   domain.Post
	Images []resolver.Result
}

// Options configures an Engine. Zero Style and nil Measurer/Location fall
// back to DefaultStyle, FixedWidthMeasurer and UTC.
type Options struct {
	Geometry Geometry
	Style    Style
	Measurer Measurer
	Location *time.Location
}

// Engine lays out posts. It holds no mutable state and is safe for
// concurrent use as long as its Measurer is.
type Engine struct {
	geom     Geometry
	style    Style
	measurer Measurer
	loc      *time.Location
}

// NewEngine validates the geometry and returns an engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Geometry.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{geom: opts.Geometry, style: opts.Style, measurer: opts.Measurer, loc: opts.Location}
	if e.style == (Style{}) {
		e.style = DefaultStyle()
	}
	if e.measurer == nil {
		e.measurer = FixedWidthMeasurer{}
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	content := e.geom.ContentRect()
	if e.lineHeight(e.style.HeadingSize) > content.H || e.lineHeight(e.style.BodySize) > content.H {
		return nil, fmt.Errorf("%w: content area shorter than one line of text", ErrInvalidGeometry)
	}
	return e, nil
}

// Geometry returns the page geometry the engine lays out for.
func (e *Engine) Geometry() Geometry { return e.geom }

// Layout paginates inputs in order in a single pass. Failed images are
// skipped; a post left with neither text nor images is omitted.
func (e *Engine) Layout(inputs []Input) []Page {
	p := &paginator{geom: e.geom, content: e.geom.ContentRect()}
	for _, in := range inputs {
		e.placePost(p, in)
	}
	return p.pages
}

type visibleImage struct {
	image *resolver.ResolvedImage
	dim   [2]int
}

func (e *Engine) placePost(p *paginator, in Input) {
	var images []visibleImage
	for _, res := range in.Images {
		if res.Image == nil || res.Image.Width <= 0 || res.Image.Height <= 0 {
			continue
		}
		images = append(images, visibleImage{image: res.Image, dim: [2]int{res.Image.Width, res.Image.Height}})
	}
	body := in.Post.Text()
	if body == "" && len(images) == 0 {
		return
	}

	content := p.content
	lines := e.textLines(in.Post, body, content.W)
	dims := make([][2]int, len(images))
	for i, img := range images {
		dims[i] = img.dim
	}
	var textH float64
	for _, l := range lines {
		textH += l.Box.H
	}
	// The heading block and first row must share one page.
	rowCap := content.H
	if room := content.H - textH - e.style.BlockGap; room > 0 {
		rowCap = room
	}
	rows := gridRows(dims, content.W, content.H, rowCap, e.style.GridGap, e.style.SingleImageShare)

	var gridH, blockGap, firstRowH float64
	for i, r := range rows {
		gridH += r.height
		if i > 0 {
			gridH += e.style.GridGap
		}
	}
	if len(rows) > 0 {
		blockGap = e.style.BlockGap
		firstRowH = rows[0].height
	}

	p.ensurePage()
	gap := 0.0
	if !p.atTop() {
		gap = e.style.PostGap
	}
	whole := textH + blockGap + gridH
	lead := textH + blockGap + firstRowH
	switch {
	case p.fits(gap + whole):
	case whole <= content.H+fitEpsilon:
		p.newPage()
		gap = 0
	case !p.fits(gap+lead) && lead <= content.H+fitEpsilon:
		p.newPage()
		gap = 0
	case !p.fits(gap + lines[0].Box.H):
		p.newPage()
		gap = 0
	}
	p.cursor += gap

	e.placeText(p, in.Post.ID, lines)
	for i, row := range rows {
		before := e.style.GridGap
		if i == 0 {
			before = blockGap
		}
		if !p.fits(before + row.height) {
			p.newPage()
			before = 0
		}
		p.cursor += before
		for _, c := range row.cells {
			box := c.box
			box.X += content.X
			box.Y += p.cursor
			p.place(Element{Kind: ElementImage, PostID: in.Post.ID, Box: box, Image: images[c.index].image})
		}
		p.cursor += row.height
	}
}

// placeText places lines top to bottom, breaking onto new pages between
// lines. Each page's share of the block becomes its own element.
func (e *Engine) placeText(p *paginator, postID string, lines []Line) {
	var chunk []Line
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		box := chunk[0].Box
		box.H = chunk[len(chunk)-1].Box.Bottom() - box.Y
		p.place(Element{Kind: ElementText, PostID: postID, Box: box, Lines: chunk})
		chunk = nil
	}
	for _, l := range lines {
		if !p.fits(l.Box.H) {
			flush()
			p.newPage()
		}
		l.Box.X = p.content.X
		l.Box.Y = p.cursor
		chunk = append(chunk, l)
		p.cursor += l.Box.H
	}
	flush()
}

// textLines builds the heading and wrapped body lines with unpositioned boxes.
func (e *Engine) textLines(post domain.Post, body string, width float64) []Line {
	name := strings.TrimSpace(post.Author.Name)
	if name == "" {
		name = domain.UnknownAuthorName
	}
	heading := name + " · " + post.CreatedAt.In(e.loc).Format(e.style.DateLayout)

	var lines []Line
	for _, text := range wrap(e.measurer, heading, e.style.HeadingSize, width) {
		lines = append(lines, Line{Text: text, Size: e.style.HeadingSize, Bold: true, Box: Rect{W: width, H: e.lineHeight(e.style.HeadingSize)}})
	}
	if body != "" {
		for _, text := range wrap(e.measurer, body, e.style.BodySize, width) {
			lines = append(lines, Line{Text: text, Size: e.style.BodySize, Box: Rect{W: width, H: e.lineHeight(e.style.BodySize)}})
		}
	}
	return lines
}

func (e *Engine) lineHeight(size float64) float64 {
	return size * e.style.Leading
}

type paginator struct {
	geom    Geometry
	content Rect
	pages   []Page
	cursor  float64
}

func (p *paginator) ensurePage() {
	if len(p.pages) == 0 {
		p.appendPage()
	}
}

// newPage starts a fresh page unless the current one is still empty.
func (p *paginator) newPage() {
	if len(p.pages) > 0 && len(p.pages[len(p.pages)-1].Elements) == 0 {
		p.cursor = p.content.Y
		return
	}
	p.appendPage()
}

func (p *paginator) appendPage() {
	p.pages = append(p.pages, Page{
		Number:  len(p.pages) + 1,
		Width:   p.geom.PageWidth(),
		Height:  p.geom.PageHeight(),
		Content: p.content,
	})
	p.cursor = p.content.Y
}

func (p *paginator) atTop() bool {
	return p.cursor <= p.content.Y
}

func (p *paginator) remaining() float64 {
	return p.content.Bottom() - p.cursor
}

// fitEpsilon absorbs rounding when a block is sized to fill the page exactly.
const fitEpsilon = 1e-6

func (p *paginator) fits(h float64) bool {
	return h <= p.remaining()+fitEpsilon
}

func (p *paginator) place(el Element) {
	p.pages[len(p.pages)-1].Elements = append(p.pages[len(p.pages)-1].Elements, el)
}
