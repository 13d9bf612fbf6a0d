package engine

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"dasm/internal/decoder"
)

// maxStringProbe bounds how many bytes analyzeData will read looking for a
// NUL-terminated printable run before giving up and classifying the datum
// unknown.
const maxStringProbe = 256

// classifyData implements SPEC_FULL.md's SUPPLEMENTED FEATURES 1: a data
// entry whose bytes read as a NUL-bounded printable run is tagged
// DataString; otherwise it is DataUnknown with the minimal length-1 span
// spec.md's bare byte/word/dword/qword/string/unknown tag leaves as the
// safe default when no operand-size context is available.
func classifyData(addr uint64, cursor *decoder.Cursor) *DataEntity {
	var raw []byte
	terminated := false
	for i := 0; i < maxStringProbe; i++ {
		b, err := cursor.ReadU8()
		if err != nil {
			break
		}
		if b == 0 {
			terminated = true
			break
		}
		raw = append(raw, b)
	}

	if terminated && len(raw) > 0 && isPrintableRun(raw) {
		return &DataEntity{Addr: addr, Length: len(raw) + 1, Type: DataString, Text: escapeUnprintable(raw)}
	}
	return &DataEntity{Addr: addr, Length: 1, Type: DataUnknown}
}

// isPrintableRun reports whether every rune in b is printable, per the
// teacher's EscapeUnprintable classification in
// _examples/Dhruvchaudhary255-reverse/internal/analysis/strings.go.
func isPrintableRun(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if !unicode.IsPrint(r) {
			return false
		}
		b = b[size:]
	}
	return true
}

// escapeUnprintable renders b as a display string, escaping anything that
// survived isPrintableRun's check defensively — generalized from the
// teacher's EscapeUnprintable (ARM64/XXTEA string recovery) to a
// domain-neutral data classifier.
func escapeUnprintable(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&sb, "\\x%02X", b[0])
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(utf8.RuneError)
		}
		b = b[size:]
	}
	return sb.String()
}
