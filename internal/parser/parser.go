// Package parser turns raw multimon-ng output lines into ParsedFrames.
//
// Two dialects are recognised by their leading tag: FLEX (in both the
// space-delimited layout of older multimon-ng builds and the newer
// pipe-delimited one) and POCSAG. Anything else on the decoder stream is
// diagnostic noise and is ignored.
package parser

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

const (
	flexTag     = "FLEX"
	flexPipeTag = "FLEX|"
	pocsagTag   = "POCSAG"

	// alnMarker marks an alphanumeric FLEX page. Numeric and tone pages
	// carry other markers and are dropped.
	alnMarker = "ALN"

	// EmptyBody is the body given to POCSAG pages without payload.
	EmptyBody = "-"
)

// Parse decodes a single decoder line. The boolean is false for lines that
// are not pages, are filtered by policy (non-alphanumeric FLEX) or cannot be
// routed (no recipient).
func Parse(line string) (models.ParsedFrame, bool) {
	line = Sanitize(line)
	switch {
	case strings.HasPrefix(line, flexPipeTag):
		return parseFlexPipe(line)
	case strings.HasPrefix(line, flexTag):
		return parseFlex(line)
	case strings.HasPrefix(line, pocsagTag):
		return parsePocsag(line)
	default:
		return models.ParsedFrame{}, false
	}
}

// Sanitize replaces undecodable byte sequences with U+FFFD and strips
// trailing line terminators and whitespace.
func Sanitize(line string) string {
	clean, _, err := transform.String(runes.ReplaceIllFormed(), line)
	if err != nil {
		clean = strings.ToValidUTF8(line, "\uFFFD")
	}
	return strings.TrimRight(clean, " \t\r\n")
}

// parseFlex handles the space-delimited layout:
//
//	FLEX: 2018-07-29 11:43:27 1600/2/K/A 10.120 [001523172] ALN A1 Boerhaavelaan HAARLM : 16172
func parseFlex(line string) (models.ParsedFrame, bool) {
	idx := strings.Index(line, " "+alnMarker+" ")
	if idx < 0 {
		return models.ParsedFrame{}, false
	}
	fields := strings.Fields(line[:idx])
	if len(fields) < 6 {
		return models.ParsedFrame{}, false
	}

	frame := models.ParsedFrame{
		Format:       models.FormatFlex,
		RawTimestamp: fields[1] + " " + fields[2],
		GroupID:      fields[4],
		Capcode:      strings.Trim(fields[5], "[]"),
		Body:         strings.TrimSpace(line[idx+len(alnMarker)+2:]),
	}
	if frame.Capcode == "" || frame.Body == "" {
		return models.ParsedFrame{}, false
	}
	return frame, true
}

// parseFlexPipe handles the pipe-delimited layout:
//
//	FLEX|2020-10-17 08:18:37|1600/2/K/A|04.093|002029568 000120999|ALN|A2 13342 Rit 92107 Amsterdam
func parseFlexPipe(line string) (models.ParsedFrame, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 7 || strings.TrimSpace(parts[5]) != alnMarker {
		return models.ParsedFrame{}, false
	}

	frame := models.ParsedFrame{
		Format:       models.FormatFlex,
		RawTimestamp: strings.TrimSpace(parts[1]),
		GroupID:      strings.TrimSpace(parts[3]),
		Capcode:      strings.Join(strings.Fields(parts[4]), " "),
		// The body itself may contain pipes.
		Body: strings.TrimSpace(strings.Join(parts[6:], "|")),
	}
	if frame.Capcode == "" || frame.Body == "" {
		return models.ParsedFrame{}, false
	}
	return frame, true
}

// parsePocsag handles lines such as:
//
//	POCSAG1200: Address:  104206  Function: 3  Alpha:   text
//	POCSAG1200: Address:  175557  Function: 0  Numeric: 0715828347
//	POCSAG1200: Address:    1000  Function: 3
func parsePocsag(line string) (models.ParsedFrame, bool) {
	addrIdx := strings.Index(line, "Address:")
	funcIdx := strings.Index(line, "Function:")
	if addrIdx < 0 || funcIdx < 0 || funcIdx < addrIdx {
		return models.ParsedFrame{}, false
	}
	capcode := strings.TrimSpace(line[addrIdx+len("Address:") : funcIdx])
	if capcode == "" {
		return models.ParsedFrame{}, false
	}

	frame := models.ParsedFrame{
		Format:  models.FormatPocsagEmpty,
		Capcode: capcode,
		Body:    EmptyBody,
	}
	if alphaIdx := strings.Index(line, "Alpha:"); alphaIdx >= 0 {
		if body := strings.TrimSpace(line[alphaIdx+len("Alpha:"):]); body != "" {
			frame.Format = models.FormatPocsagAlpha
			frame.Body = body
		}
	} else if numIdx := strings.Index(line, "Numeric:"); numIdx >= 0 {
		if body := strings.TrimSpace(line[numIdx+len("Numeric:"):]); body != "" {
			frame.Format = models.FormatPocsagNumeric
			frame.Body = body
		}
	}
	return frame, true
}
