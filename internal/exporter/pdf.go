package exporter

import (
	"fmt"
	"io"

	"github.com/fyerfyer/delta-render-service/internal/delta"
	"github.com/fyerfyer/delta-render-service/internal/renderer"
	"github.com/jung-kurt/gofpdf"
)

// headerSizes 各级标题的字号，下标为级别减一
var headerSizes = [6]float64{24, 20, 16, 14, 12, 11}

const (
	bodySize   = 12
	lineHeight = 6
)

// PDFExporter PDF文档导出器
// 按行遍历Delta内容，标题和列表使用独立的排版规则
type PDFExporter struct{}

// NewPDFExporter 创建新的PDF导出器
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// styledSpan 一段带行内格式的文本
type styledSpan struct {
	text  string
	style string // gofpdf字体样式串：B/I/U/S的组合
}

// Export 将Delta内容导出为PDF并写入sink
func (e *PDFExporter) Export(ops delta.Delta, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", bodySize)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	cursor := renderer.NewCursor(ops)
	var spans []styledSpan

	for seg := cursor.Current(); seg != nil; seg = cursor.Current() {
		if seg.Kind == renderer.SegmentInline {
			spans = append(spans, styledSpan{
				text:  seg.Text,
				style: spanStyle(seg.Op),
			})
			cursor.Advance()
			continue
		}

		e.writeLine(pdf, tr, spans, seg)
		spans = nil
		cursor.Advance()
	}

	// 末尾未终结的行内文本自成一段
	if len(spans) > 0 {
		e.writeParagraph(pdf, tr, spans, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF output: %v", err)
	}
	return nil
}

// writeLine 排版一个行片段及其积累的行内文本
func (e *PDFExporter) writeLine(pdf *gofpdf.Fpdf, tr func(string) string, spans []styledSpan, seg *renderer.Segment) {
	if level, ok := headerLevel(seg.Op); ok {
		size := headerSizes[level-1]
		pdf.SetFont("Arial", "B", size)
		for _, span := range spans {
			pdf.SetFont("Arial", "B"+span.style, size)
			pdf.Write(lineHeight+2, tr(span.text))
		}
		pdf.SetFont("Arial", "B", size)
		pdf.Write(lineHeight+2, tr(seg.Text))
		pdf.Ln(lineHeight + 4)
		pdf.SetFont("Arial", "", bodySize)
		return
	}

	if isListLine(seg.Op) {
		pdf.SetFont("Arial", "", bodySize)
		pdf.Write(lineHeight, tr("  - "))
		for _, span := range spans {
			pdf.SetFont("Arial", span.style, bodySize)
			pdf.Write(lineHeight, tr(span.text))
		}
		pdf.SetFont("Arial", "", bodySize)
		pdf.Write(lineHeight, tr(seg.Text))
		pdf.Ln(lineHeight)
		return
	}

	e.writeParagraph(pdf, tr, spans, seg.Text)
}

// writeParagraph 排版一个普通段落
func (e *PDFExporter) writeParagraph(pdf *gofpdf.Fpdf, tr func(string) string, spans []styledSpan, tail string) {
	for _, span := range spans {
		pdf.SetFont("Arial", span.style, bodySize)
		pdf.Write(lineHeight, tr(span.text))
	}
	pdf.SetFont("Arial", "", bodySize)
	pdf.Write(lineHeight, tr(tail))
	pdf.Ln(lineHeight + 2)
}

// spanStyle 根据行内属性计算gofpdf字体样式串
func spanStyle(op *delta.Op) string {
	attrs := op.Attributes()
	if attrs == nil {
		return ""
	}

	var style string
	if boolAttr(attrs, "bold") {
		style += "B"
	}
	if boolAttr(attrs, "italic") {
		style += "I"
	}
	if boolAttr(attrs, "underline") {
		style += "U"
	}
	if boolAttr(attrs, "strike") {
		style += "S"
	}
	return style
}

// boolAttr 读取一个bool类型的属性，缺失或类型不符视为false
func boolAttr(attrs *delta.AttributesMap, key string) bool {
	value, ok := attrs.Get(key)
	if !ok {
		return false
	}
	flag, isBool := value.(bool)
	return isBool && flag
}

// headerLevel 解析行属性中的标题级别，收敛到[1,6]
func headerLevel(op *delta.Op) (int, bool) {
	attrs := op.Attributes()
	if attrs == nil {
		return 0, false
	}
	value, ok := attrs.Get("header")
	if !ok {
		return 0, false
	}

	var level int
	switch v := value.(type) {
	case float64:
		level = int(v)
	case int:
		level = v
	default:
		return 0, false
	}

	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return level, true
}

// isListLine 判断行属性是否携带可识别的列表标记
func isListLine(op *delta.Op) bool {
	attrs := op.Attributes()
	if attrs == nil {
		return false
	}
	value, ok := attrs.Get("list")
	if !ok {
		return false
	}
	return value == "ordered" || value == "bullet"
}
