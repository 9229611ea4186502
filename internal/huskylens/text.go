package huskylens

import (
	"fmt"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Screen bounds for on-screen text placement.
const (
	ScreenWidth  = 320
	ScreenHeight = 240
)

const (
	// xOverflowFlag marks an X coordinate that did not fit in one byte.
	xOverflowFlag = 0xFF
	maxTextLen    = MaxPayload - 4
	maxNameLen    = MaxPayload - 3
)

// toASCII transliterates s to one byte per character: accents are stripped
// and anything still outside ASCII becomes '?'. Decomposed characters are
// recomposed before the mapping, so a Hangul syllable stays one '?'.
func toASCII(s string) []byte {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
		runes.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return '?'
			}
			return r
		}),
	)
	out, _, _ := transform.String(t, s)
	return []byte(out)
}

// encodeText builds the custom text payload:
// [len][x flag][x][y][text...].
func encodeText(x, y uint16, text string) ([]byte, error) {
	if x > ScreenWidth || y > ScreenHeight {
		return nil, fmt.Errorf("%w: text position (%d, %d) outside %dx%d screen", ErrInvalidArgument, x, y, ScreenWidth, ScreenHeight)
	}
	encoded := toASCII(text)
	if len(encoded) > maxTextLen {
		return nil, fmt.Errorf("%w: text of %d characters exceeds %d", ErrInvalidArgument, len(encoded), maxTextLen)
	}

	var xFlag byte
	xValue := x
	if x >= xOverflowFlag {
		xFlag = xOverflowFlag
		xValue = x % xOverflowFlag
	}

	payload := make([]byte, 0, 4+len(encoded))
	payload = append(payload, byte(len(encoded)), xFlag, byte(xValue), byte(y))
	return append(payload, encoded...), nil
}

// encodeName builds the custom name payload:
// [id][len+1][name...][0]. The length counts the terminator.
func encodeName(id uint16, name string) ([]byte, error) {
	if id > 0xFF {
		return nil, fmt.Errorf("%w: object id %d does not fit in one byte", ErrInvalidArgument, id)
	}
	encoded := toASCII(name)
	if len(encoded) > maxNameLen {
		return nil, fmt.Errorf("%w: name of %d characters exceeds %d", ErrInvalidArgument, len(encoded), maxNameLen)
	}

	payload := make([]byte, 0, 3+len(encoded))
	payload = append(payload, byte(id), byte(len(encoded)+1))
	payload = append(payload, encoded...)
	return append(payload, 0), nil
}
