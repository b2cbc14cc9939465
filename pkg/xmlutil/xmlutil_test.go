package xmlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, "&lt;/conflict&gt; &amp; &#34;x&#34;", Escape(`</conflict> & "x"`))
	assert.Equal(t, "plain", Escape("plain"))
}

func TestBlock(t *testing.T) {
	got := Block("conflict",
		Field{Tag: "type", Value: "naming_conflict"},
		Field{Tag: "description", Value: "<b>"},
	)
	assert.Equal(t, "<conflict>\n<type>naming_conflict</type>\n<description>&lt;b&gt;</description>\n</conflict>", got)
}
