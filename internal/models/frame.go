package models

import "strings"

// Format tags the decoder dialect a frame was parsed from.
type Format int

const (
	FormatFlex Format = iota
	FormatPocsagAlpha
	FormatPocsagNumeric
	FormatPocsagEmpty
)

func (f Format) String() string {
	switch f {
	case FormatFlex:
		return "flex"
	case FormatPocsagAlpha:
		return "pocsag_alpha"
	case FormatPocsagNumeric:
		return "pocsag_numeric"
	case FormatPocsagEmpty:
		return "pocsag_empty"
	default:
		return "unknown"
	}
}

// IsPocsag reports whether the frame came from a POCSAG decoder line.
func (f Format) IsPocsag() bool {
	return f == FormatPocsagAlpha || f == FormatPocsagNumeric || f == FormatPocsagEmpty
}

// ParsedFrame is one decoded page line. It lives only between parsing and
// the store upsert.
type ParsedFrame struct {
	Format       Format
	GroupID      string // FLEX only
	Capcode      string // raw recipient text, may list several capcodes
	Body         string
	RawTimestamp string // FLEX only
}

// Recipients splits Capcode into the individual recipient capcodes.
// Pipe-delimited FLEX lines carry several space separated capcodes.
func (f ParsedFrame) Recipients() []string {
	return strings.Fields(f.Capcode)
}
