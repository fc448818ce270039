package exporter

import (
	"bytes"
	"testing"

	"github.com/fyerfyer/delta-render-service/internal/delta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportDocument(t *testing.T) {
	ops := delta.Delta{
		delta.NewInsert("Report Title", nil),
		delta.NewInsert("\n", delta.NewAttributes().Set("header", 1)),
		delta.NewInsert("Plain intro with ", nil),
		delta.NewInsert("bold", delta.NewAttributes().Set("bold", true)),
		delta.NewInsert(" text.\n", nil),
		delta.NewInsert("first item", nil),
		delta.NewInsert("\n", delta.NewAttributes().Set("list", "bullet")),
		delta.NewInsert("second item", nil),
		delta.NewInsert("\n", delta.NewAttributes().Set("list", "bullet")),
	}

	var buf bytes.Buffer
	exp := NewPDFExporter()
	err := exp.Export(ops, &buf)
	require.NoError(t, err, "Export should succeed")

	output := buf.Bytes()
	assert.True(t, bytes.HasPrefix(output, []byte("%PDF-")), "Output should be a PDF file")
	assert.Greater(t, len(output), 500, "PDF output should not be empty")
}

func TestExportEmptyDelta(t *testing.T) {
	var buf bytes.Buffer
	exp := NewPDFExporter()
	err := exp.Export(delta.Delta{}, &buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestExportTrailingInline(t *testing.T) {
	// 没有终结换行的行内文本也要出现在输出中
	ops := delta.Delta{
		delta.NewInsert("dangling text", nil),
	}

	var buf bytes.Buffer
	exp := NewPDFExporter()
	err := exp.Export(ops, &buf)
	require.NoError(t, err)
	assert.Greater(t, buf.Len(), 500)
}

func TestExportSinkError(t *testing.T) {
	ops := delta.Delta{delta.NewInsert("hello\n", nil)}

	exp := NewPDFExporter()
	err := exp.Export(ops, failWriter{})
	assert.Error(t, err, "Sink write failures should propagate")
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, assert.AnError
}
