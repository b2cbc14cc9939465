// Package xmlutil renders untrusted text into XML-delimited prompt blocks.
package xmlutil

import (
	"encoding/xml"
	"strings"
)

// Escape replaces characters with special meaning in XML so user content
// cannot close or open tags in a prompt template.
func Escape(s string) string {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		// EscapeText only fails on invalid UTF-8.
		return s
	}
	return buf.String()
}

// Field is one child element of a Block.
type Field struct {
	Tag   string
	Value string
}

// Block renders <tag> with one escaped child element per field, in order.
// Tags are trusted and written as-is.
func Block(tag string, fields ...Field) string {
	var b strings.Builder
	b.WriteString("<" + tag + ">\n")
	for _, f := range fields {
		b.WriteString("<" + f.Tag + ">")
		b.WriteString(Escape(f.Value))
		b.WriteString("</" + f.Tag + ">\n")
	}
	b.WriteString("</" + tag + ">")
	return b.String()
}
