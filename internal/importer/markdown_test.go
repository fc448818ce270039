package importer

import (
	"strings"
	"testing"

	"github.com/fyerfyer/delta-render-service/internal/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportHeadingAndParagraph(t *testing.T) {
	source := "# Title\n\nHello world.\n"

	imp := NewMarkdownImporter()
	d, err := imp.Import([]byte(source))
	require.NoError(t, err, "Import should succeed")
	require.NotEmpty(t, d)

	html, err := renderer.RenderHTMLString(d)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Title</h1><p>Hello world.</p>", html)
}

func TestImportInlineFormatting(t *testing.T) {
	source := "Hello **bold** and *italic* and ~~gone~~.\n"

	imp := NewMarkdownImporter()
	d, err := imp.Import([]byte(source))
	require.NoError(t, err)

	html, err := renderer.RenderHTMLString(d)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello <b>bold</b> and <em>italic</em> and <s>gone</s>.</p>", html)
}

func TestImportNestedEmphasis(t *testing.T) {
	source := "***both***\n"

	imp := NewMarkdownImporter()
	d, err := imp.Import([]byte(source))
	require.NoError(t, err)

	html, err := renderer.RenderHTMLString(d)
	require.NoError(t, err)
	assert.Equal(t, "<p><em><b>both</b></em></p>", html)
}

func TestImportBulletList(t *testing.T) {
	source := "- first\n- second\n- third\n"

	imp := NewMarkdownImporter()
	d, err := imp.Import([]byte(source))
	require.NoError(t, err)

	html, err := renderer.RenderHTMLString(d)
	require.NoError(t, err)
	assert.Equal(t, "<ul><li>first</li><li>second</li><li>third</li></ul>", html)
}

func TestImportOrderedList(t *testing.T) {
	source := "1. one\n2. two\n"

	imp := NewMarkdownImporter()
	d, err := imp.Import([]byte(source))
	require.NoError(t, err)

	// 有序和无序列表共用同一种列表标记
	var ordered int
	for _, op := range d {
		if attrs := op.Attributes(); attrs != nil {
			if kind, ok := attrs.Get("list"); ok {
				assert.Equal(t, "ordered", kind)
				ordered++
			}
		}
	}
	assert.Equal(t, 2, ordered, "Each list item should carry the list attribute")
}

func TestImportHeadingLevels(t *testing.T) {
	source := "## Second\n\n### Third\n"

	imp := NewMarkdownImporter()
	d, err := imp.Import([]byte(source))
	require.NoError(t, err)

	html, err := renderer.RenderHTMLString(d)
	require.NoError(t, err)
	assert.Equal(t, "<h2>Second</h2><h3>Third</h3>", html)
}

func TestImportCodeBlock(t *testing.T) {
	source := "```\nline one\nline two\n```\n"

	imp := NewMarkdownImporter()
	d, err := imp.Import([]byte(source))
	require.NoError(t, err)

	html, err := renderer.RenderHTMLString(d)
	require.NoError(t, err)
	assert.Equal(t, "<p>line one</p><p>line two</p>", html)
}

func TestImportEmptySource(t *testing.T) {
	imp := NewMarkdownImporter()
	d, err := imp.Import([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, d, "Empty markdown should produce an empty delta")
}

func TestImportReader(t *testing.T) {
	imp := NewMarkdownImporter()
	d, err := imp.ImportReader(strings.NewReader("plain text\n"))
	require.NoError(t, err)

	html, err := renderer.RenderHTMLString(d)
	require.NoError(t, err)
	assert.Equal(t, "<p>plain text</p>", html)
}
