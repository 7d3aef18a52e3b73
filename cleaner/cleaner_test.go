package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head><title> Example Domain </title><style>p{}</style></head>
<body><h1>Example</h1><p>See <a href="/more">more</a>.</p>
<script>var x = 1;</script>
<table><tr><th>a</th><th>b</th></tr><tr><td>1</td><td>2</td></tr></table></body></html>`

func TestToMarkdown(t *testing.T) {
	md, err := NewConverter().ToMarkdown(samplePage, "https://example.com")
	require.NoError(t, err)

	assert.Contains(t, md, "# Example")
	assert.Contains(t, md, "[more](https://example.com/more)")
	assert.Contains(t, md, "| a | b |")
	assert.NotContains(t, md, "var x")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Example Domain", Title(samplePage))
	assert.Empty(t, Title("<html><head></head><body></body></html>"))
}

func TestText(t *testing.T) {
	text, err := Text("<html><body><p>Hello   <b>world</b></p>\n<p>again</p><script>track()</script></body></html>")
	require.NoError(t, err)
	assert.Equal(t, "Hello world again", text)
}
