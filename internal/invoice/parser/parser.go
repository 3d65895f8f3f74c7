// Package parser turns raw NFS-e XML documents into canonical invoices. Two
// layouts are supported: the legacy municipal layout (Ginfes) and the
// national standard layout (SPED). All failures are returned as *Error
// values; nothing panics across this boundary.
package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"fiscalwatch/internal/invoice/models"
)

// ErrorKind classifies parse failures. All of them are recoverable at the
// caller; a bad document never takes the system down.
type ErrorKind string

const (
	KindUnknownFormat ErrorKind = "UNKNOWN_FORMAT"
	KindFieldMissing  ErrorKind = "FIELD_MISSING"
	KindDecodeFailure ErrorKind = "DECODE_FAILURE"
)

// Error is the tagged result value for any parse failure.
type Error struct {
	Kind   ErrorKind
	Field  string
	Detail string
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Detail != "":
		return fmt.Sprintf("parse error %s: field %s: %s", e.Kind, e.Field, e.Detail)
	case e.Field != "":
		return fmt.Sprintf("parse error %s: field %s", e.Kind, e.Field)
	case e.Detail != "":
		return fmt.Sprintf("parse error %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("parse error %s", e.Kind)
}

func errUnknownFormat(root string) *Error {
	return &Error{Kind: KindUnknownFormat, Detail: fmt.Sprintf("unrecognized document root %q", root)}
}

func errFieldMissing(field, detail string) *Error {
	return &Error{Kind: KindFieldMissing, Field: field, Detail: detail}
}

func errDecode(detail string) *Error {
	return &Error{Kind: KindDecodeFailure, Detail: detail}
}

// Parse detects the document layout from its root element and dispatches to
// the matching layout parser. The returned invoice always has number,
// timestamp, value and service code populated.
func Parse(raw []byte) (*models.Invoice, error) {
	text, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	root, err := rootElement(text)
	if err != nil {
		return nil, err
	}

	switch root {
	case "tbnfd", "nfdok":
		return parseLegacy(text)
	case "NFSe":
		return parseNational(text)
	default:
		return nil, errUnknownFormat(root)
	}
}

// decodePayload yields a UTF-8 string, falling back to ISO-8859-1 for the
// municipal documents that still ship latin-1 bytes.
func decodePayload(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", errDecode("empty document")
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", errDecode(fmt.Sprintf("not valid UTF-8 nor ISO-8859-1: %v", err))
	}
	return string(decoded), nil
}

// rootElement returns the local name of the document's root element.
func rootElement(text string) (string, error) {
	dec := newDecoder(strings.NewReader(text))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", errDecode(fmt.Sprintf("no root element: %v", err))
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// newDecoder builds an xml.Decoder that accepts latin-1 encoding
// declarations; the payload has already been transcoded to UTF-8.
func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "utf-8", "us-ascii", "iso-8859-1", "latin1", "windows-1252":
			return input, nil
		}
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return dec
}

// strategy is one named way of extracting a field. Strategies are tried in
// declaration order; the first non-empty result wins. Keeping them named and
// ordered makes each fallback inspectable on its own.
type strategy struct {
	name    string
	extract func() string
}

func firstNonEmpty(strategies []strategy) (value string, source string) {
	for _, s := range strategies {
		if v := strings.TrimSpace(s.extract()); v != "" {
			return v, s.name
		}
	}
	return "", ""
}
