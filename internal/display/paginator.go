// Package display renders the message history as a fixed-size, wrapped
// text page for a small screen.
package display

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

const (
	DefaultLines = 11
	DefaultWidth = 37
)

// Tag is the colour class of a display line.
type Tag int

const (
	TagNone Tag = iota
	TagWarn
	TagAlert
)

func (t Tag) String() string {
	switch t {
	case TagWarn:
		return "warn"
	case TagAlert:
		return "alert"
	default:
		return "none"
	}
}

// TagFor maps a record priority to the colour of its body lines.
func TagFor(p models.Priority) Tag {
	switch p {
	case models.Priority1:
		return TagAlert
	case models.Priority2, models.Priority3, models.Priority4:
		return TagWarn
	default:
		return TagNone
	}
}

// Line is one row of the page, padded to the display width.
type Line struct {
	Text string
	Tag  Tag
}

// View is a rendered page.
type View struct {
	Status  string // message count or PAUSED
	Address string // where the API listens
	Offset  int
	Paused  bool
	Lines   []Line
}

// Source is the read side of the message store.
type Source interface {
	Page(offset, count int) []models.MessageRecord
	Len() int
}

// Paginator keeps the navigation state of the display and renders pages.
// It is safe for concurrent use.
type Paginator struct {
	source  Source
	lines   int
	width   int
	address string

	mu     sync.Mutex
	offset int
	paused bool
	frozen []Line
}

// NewPaginator creates a paginator of lines rows of width columns.
// Non-positive sizes select the defaults.
func NewPaginator(source Source, lines, width int, address string) *Paginator {
	if lines <= 0 {
		lines = DefaultLines
	}
	if width <= 0 {
		width = DefaultWidth
	}
	return &Paginator{source: source, lines: lines, width: width, address: address}
}

// Prev moves one record towards the newest and resumes live updates.
func (p *Paginator) Prev() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.offset > 0 {
		p.offset--
	}
	p.paused = false
}

// Next moves one record towards the oldest and resumes live updates.
func (p *Paginator) Next() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.offset < p.source.Len()-1 {
		p.offset++
	}
	p.paused = false
}

// TogglePause freezes the current page, or unfreezes it and jumps back to
// the newest record.
func (p *Paginator) TogglePause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = !p.paused
	if p.paused {
		p.frozen = p.layout(p.source.Page(p.offset, p.lines))
	} else {
		p.offset = 0
		p.frozen = nil
	}
}

// Paused reports whether the page is frozen.
func (p *Paginator) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Render returns the current page. While paused the lines captured when
// pausing are returned unchanged.
func (p *Paginator) Render() View {
	p.mu.Lock()
	offset, paused, frozen := p.offset, p.paused, p.frozen
	p.mu.Unlock()

	view := View{Address: p.address, Offset: offset, Paused: paused}
	if paused {
		view.Status = "PAUSED"
		view.Lines = frozen
		return view
	}

	view.Status = fmt.Sprintf("%d messages", p.source.Len())
	// Every record takes at least one row, so p.lines records always fill
	// the page.
	view.Lines = p.layout(p.source.Page(offset, p.lines))
	return view
}

func (p *Paginator) layout(records []models.MessageRecord) []Line {
	out := make([]Line, 0, p.lines)
	add := func(text string, tag Tag) bool {
		if len(out) >= p.lines {
			return false
		}
		out = append(out, Line{Text: p.pad(text), Tag: tag})
		return true
	}

	for _, rec := range records {
		if !add(fmt.Sprintf("%s. %s", rec.GroupID, rec.TimestampDisplay), TagNone) {
			break
		}
		for _, s := range p.wrap("To: " + strings.Join(rec.ReceiverLabels, ", ")) {
			add(s, TagNone)
		}
		tag := TagFor(rec.Priority)
		for _, s := range p.wrap(rec.BodyText) {
			add(s, tag)
		}
		add("", TagNone)
	}

	for len(out) < p.lines {
		out = append(out, Line{Text: p.pad(""), Tag: TagNone})
	}
	return out
}

// wrap word-wraps text to the display width. Runs of whitespace collapse
// to one space; words longer than the width are broken.
func (p *Paginator) wrap(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	wrapped := ansi.Wrap(text, p.width, "")
	lines := strings.Split(wrapped, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lines
}

func (p *Paginator) pad(text string) string {
	if w := ansi.StringWidth(text); w < p.width {
		return text + strings.Repeat(" ", p.width-w)
	}
	return ansi.Truncate(text, p.width, "")
}
