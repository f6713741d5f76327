package backgroundcheck

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// RenderLiteral renders a JSON value in Python literal notation, the text
// format the CRM has always displayed for list fields:
//
//	[{'street': '1 Main St', 'current': True, 'to_date': None}]
//
// Object keys keep their order from the provider payload. An absent value
// renders as None.
func RenderLiteral(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "None", nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var sb strings.Builder
	if err := renderValue(dec, &sb); err != nil {
		return "", fmt.Errorf("failed to render value: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", fmt.Errorf("failed to render value: trailing data")
	}
	return sb.String(), nil
}

func renderValue(dec *json.Decoder, sb *strings.Builder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '[':
			sb.WriteByte('[')
			for i := 0; dec.More(); i++ {
				if i > 0 {
					sb.WriteString(", ")
				}
				if err := renderValue(dec, sb); err != nil {
					return err
				}
			}
			sb.WriteByte(']')
		case '{':
			sb.WriteByte('{')
			for i := 0; dec.More(); i++ {
				if i > 0 {
					sb.WriteString(", ")
				}
				key, err := dec.Token()
				if err != nil {
					return err
				}
				writeString(sb, key.(string))
				sb.WriteString(": ")
				if err := renderValue(dec, sb); err != nil {
					return err
				}
			}
			sb.WriteByte('}')
		}
		// closing delimiter
		if _, err := dec.Token(); err != nil {
			return err
		}
	case string:
		writeString(sb, v)
	case json.Number:
		writeNumber(sb, v)
	case bool:
		if v {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case nil:
		sb.WriteString("None")
	}
	return nil
}

// writeNumber keeps integers as written and formats floats the way Python's
// repr does.
func writeNumber(sb *strings.Builder, n json.Number) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		sb.WriteString(s)
		return
	}

	f, err := n.Float64()
	if err != nil {
		sb.WriteString(s)
		return
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		sb.WriteString(sci)
		return
	}

	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	sb.WriteString(fixed)
	if !strings.ContainsAny(fixed, ".") {
		sb.WriteString(".0")
	}
}

func writeString(sb *strings.Builder, s string) {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	sb.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == rune(quote) || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		case r < 0x100:
			fmt.Fprintf(sb, `\x%02x`, r)
		case r < 0x10000:
			fmt.Fprintf(sb, `\u%04x`, r)
		default:
			fmt.Fprintf(sb, `\U%08x`, r)
		}
	}
	sb.WriteByte(quote)
}
