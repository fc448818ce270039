package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fyerfyer/delta-render-service/internal/delta"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownImporter Markdown文档导入器
// 将Markdown源码转换为等价的Delta操作序列
type MarkdownImporter struct{}

// NewMarkdownImporter 创建新的Markdown导入器
func NewMarkdownImporter() *MarkdownImporter {
	return &MarkdownImporter{}
}

// Import 将Markdown内容转换为Delta
func (m *MarkdownImporter) Import(source []byte) (delta.Delta, error) {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)

	doc := mdParser.Parse(source)

	c := &converter{}
	for _, child := range doc.GetChildren() {
		c.block(child, "")
	}

	return delta.Delta(c.ops), nil
}

// ImportReader 从Reader读取Markdown内容并转换为Delta
func (m *MarkdownImporter) ImportReader(r io.Reader) (delta.Delta, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown content: %v", err)
	}
	return m.Import(source)
}

// converter 将Markdown AST转换为Delta操作的中间状态
type converter struct {
	ops []delta.Op
}

// inlineStyle 当前内联节点继承的格式化状态
type inlineStyle struct {
	bold   bool
	italic bool
	strike bool
}

// block 转换一个块级节点
// listKind非空时表示当前位于对应类型的列表项内部
func (c *converter) block(node ast.Node, listKind string) {
	switch n := node.(type) {
	case *ast.Heading:
		c.inlineChildren(n, inlineStyle{})
		level := n.Level
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		c.newline(delta.NewAttributes().Set("header", level))

	case *ast.Paragraph:
		c.inlineChildren(n, inlineStyle{})
		c.blockEnd(listKind)

	case *ast.List:
		kind := "bullet"
		if n.ListFlags&ast.ListTypeOrdered != 0 {
			kind = "ordered"
		}
		for _, child := range n.GetChildren() {
			c.block(child, kind)
		}

	case *ast.ListItem:
		for _, child := range n.GetChildren() {
			c.block(child, listKind)
		}

	case *ast.CodeBlock:
		// 代码块逐行转换为普通段落，不保留语言信息
		lines := strings.Split(strings.TrimRight(string(n.Literal), "\n"), "\n")
		for _, line := range lines {
			c.text(line, inlineStyle{})
			c.newline(nil)
		}

	case *ast.BlockQuote:
		// 引用块没有对应的Delta表示，内容按普通段落处理
		for _, child := range n.GetChildren() {
			c.block(child, "")
		}

	case *ast.HorizontalRule:
		// 跳过分隔线

	default:
		// 其他块级节点（表格等）只保留文本内容
		if len(node.GetChildren()) > 0 {
			c.inlineChildren(node, inlineStyle{})
			c.blockEnd(listKind)
		}
	}
}

// blockEnd 结束当前块，在列表项内部使用列表属性
func (c *converter) blockEnd(listKind string) {
	if listKind != "" {
		c.newline(delta.NewAttributes().Set("list", listKind))
		return
	}
	c.newline(nil)
}

// inlineChildren 转换一个节点的全部内联子节点
func (c *converter) inlineChildren(node ast.Node, style inlineStyle) {
	for _, child := range node.GetChildren() {
		c.inline(child, style)
	}
}

// inline 转换一个内联节点，格式化状态沿树向下传递
func (c *converter) inline(node ast.Node, style inlineStyle) {
	switch n := node.(type) {
	case *ast.Text:
		// 软换行在Delta中没有意义，折叠为空格
		c.text(strings.ReplaceAll(string(n.Literal), "\n", " "), style)

	case *ast.Strong:
		style.bold = true
		c.inlineChildren(n, style)

	case *ast.Emph:
		style.italic = true
		c.inlineChildren(n, style)

	case *ast.Del:
		style.strike = true
		c.inlineChildren(n, style)

	case *ast.Code:
		c.text(string(n.Literal), style)

	case *ast.Link:
		// 只保留链接文本
		c.inlineChildren(n, style)

	case *ast.Softbreak, *ast.Hardbreak:
		c.text(" ", style)

	case *ast.Image:
		// 跳过图片

	default:
		c.inlineChildren(node, style)
	}
}

// text 追加一段带当前格式的文本插入操作
func (c *converter) text(s string, style inlineStyle) {
	if s == "" {
		return
	}

	var attrs *delta.AttributesMap
	if style.bold || style.italic || style.strike {
		attrs = delta.NewAttributes()
		if style.bold {
			attrs.Set("bold", true)
		}
		if style.italic {
			attrs.Set("italic", true)
		}
		if style.strike {
			attrs.Set("strike", true)
		}
	}

	c.ops = append(c.ops, delta.NewInsert(s, attrs))
}

// newline 追加携带块属性的换行操作
func (c *converter) newline(attrs *delta.AttributesMap) {
	c.ops = append(c.ops, delta.NewInsert("\n", attrs))
}
