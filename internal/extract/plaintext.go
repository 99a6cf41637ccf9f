package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// PlainText decodes text files with unknown character encoding.
type PlainText struct{}

// candidateEncodings are tried in order after UTF-8; the first clean decode
// wins. The list mirrors what files from Windows machines typically carry:
// UTF-16 with BOM, then the bare little/big-endian variants, then the
// Windows-1252 legacy codepage.
var candidateEncodings = []encoding.Encoding{
	unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM),
	unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	charmap.Windows1252,
}

// Extract never fails: if no candidate encoding decodes the bytes cleanly,
// it falls back to UTF-8 with undecodable bytes discarded.
func (p *PlainText) Extract(_ context.Context, content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}

	for _, enc := range candidateEncodings {
		if text, ok := tryDecode(enc, content); ok {
			return text, nil
		}
	}

	return strings.ToValidUTF8(string(content), ""), nil
}

// tryDecode reports success only for a clean decode: decoder errors and
// replacement runes (undecodable input) both count as failure.
func tryDecode(enc encoding.Encoding, content []byte) (string, bool) {
	decoded, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", false
	}
	text := string(decoded)
	if strings.ContainsRune(text, utf8.RuneError) {
		return "", false
	}
	return text, true
}
