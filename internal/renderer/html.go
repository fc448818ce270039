package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fyerfyer/delta-render-service/internal/delta"
)

// ListKind 列表类型
type ListKind int

const (
	// ListOrdered 有序列表
	ListOrdered ListKind = iota
	// ListBullet 无序列表
	ListBullet
)

// inlineTags 行内格式标签，按嵌套顺序从内到外排列：
// b最内层，s最外层；开标签按逆序写出，闭标签按正序写出
var inlineTags = [4]struct {
	name string
	attr string
}{
	{name: "b", attr: "bold"},
	{name: "em", attr: "italic"},
	{name: "u", attr: "underline"},
	{name: "s", attr: "strike"},
}

// blockHandler 块处理器
// claim检查并渲染一个行片段：成功消费返回true，
// 不认领返回false让后续处理器接手
type blockHandler struct {
	name  string
	claim func(r *renderState, seg *Segment) (bool, error)
}

// blockHandlers 块处理器链，按优先级排列：列表 → 标题 → 段落
// 段落处理器无条件兜底，链的求值保证每个行片段恰好被渲染一次
var blockHandlers = []blockHandler{
	{name: "list", claim: claimList},
	{name: "header", claim: claimHeader},
	{name: "paragraph", claim: claimParagraph},
}

// renderState 一次渲染调用的全部可变状态
// 游标/偏移和行内缓冲区都是本次调用私有的，渲染之间不共享
type renderState struct {
	cursor *Cursor
	inline strings.Builder // 待刷出的行内HTML缓冲区
	w      io.Writer
}

// RenderHTML 将Delta渲染为HTML写入sink
// 单遍、单线程、无回溯；输出按文档顺序恰好写出一次。
// 插入文本原样写出，不做HTML转义；接受不可信Delta的调用方
// 需要在下游自行消毒。只有sink写入错误会向上传播，
// 格式属性异常一律在内部降级吸收
func RenderHTML(ops delta.Delta, w io.Writer) error {
	st := &renderState{
		cursor: NewCursor(ops),
		w:      w,
	}

	for seg := st.cursor.Current(); seg != nil; seg = st.cursor.Current() {
		if seg.Kind == SegmentInline {
			st.appendInline(seg)
			st.cursor.Advance()
			continue
		}
		for _, handler := range blockHandlers {
			claimed, err := handler.claim(st, seg)
			if err != nil {
				return err
			}
			if claimed {
				break
			}
		}
	}

	// 末尾未终结的行内文本自成一段
	if st.hasInline() {
		if err := st.write("<p>"); err != nil {
			return err
		}
		if err := st.flushInline(); err != nil {
			return err
		}
		if err := st.write("</p>"); err != nil {
			return err
		}
	}
	return nil
}

// RenderHTMLString 渲染为HTML字符串
func RenderHTMLString(ops delta.Delta) (string, error) {
	var sb strings.Builder
	if err := RenderHTML(ops, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// claimList 列表块处理器
// 认领携带可识别list属性的行；两种列表类型都渲染为<ul>容器。
// 认领的第一行作为第一个列表项写出，随后持续消费带list属性的行，
// 第一个不带list属性的行终止分组且不被消费，重新走完整处理器链
func claimList(st *renderState, seg *Segment) (bool, error) {
	if _, ok := listKindOf(seg.Op); !ok {
		return false, nil
	}

	if err := st.write("<ul>"); err != nil {
		return true, err
	}
	for cur := st.cursor.Current(); cur != nil; cur = st.cursor.Current() {
		if cur.Kind == SegmentInline {
			st.appendInline(cur)
			st.cursor.Advance()
			continue
		}
		if _, ok := listKindOf(cur.Op); !ok {
			break
		}
		if err := st.write("<li>"); err != nil {
			return true, err
		}
		if err := st.flushInline(); err != nil {
			return true, err
		}
		if err := st.write(cur.Text); err != nil {
			return true, err
		}
		if err := st.write("</li>"); err != nil {
			return true, err
		}
		st.cursor.Advance()
	}
	return true, st.write("</ul>")
}

// claimHeader 标题块处理器
// 认领header属性为数值的行，级别收敛到[1,6]；恰好消费一行
func claimHeader(st *renderState, seg *Segment) (bool, error) {
	level, ok := headerLevelOf(seg.Op)
	if !ok {
		return false, nil
	}

	if err := st.write(fmt.Sprintf("<h%d>", level)); err != nil {
		return true, err
	}
	if err := st.flushInline(); err != nil {
		return true, err
	}
	if err := st.write(seg.Text); err != nil {
		return true, err
	}
	if err := st.write(fmt.Sprintf("</h%d>", level)); err != nil {
		return true, err
	}
	st.cursor.Advance()
	return true, nil
}

// claimParagraph 段落块处理器，无条件兜底
func claimParagraph(st *renderState, seg *Segment) (bool, error) {
	if err := st.write("<p>"); err != nil {
		return true, err
	}
	if err := st.flushInline(); err != nil {
		return true, err
	}
	if err := st.write(seg.Text); err != nil {
		return true, err
	}
	if err := st.write("</p>"); err != nil {
		return true, err
	}
	st.cursor.Advance()
	return true, nil
}

// appendInline 把行内片段按其属性包裹格式标签后追加到缓冲区
// 四个格式开关彼此独立；缺失或非bool的属性视为关闭。
// 嵌套顺序固定：s最外，其次u、em，b最内
func (st *renderState) appendInline(seg *Segment) {
	var enabled [4]bool
	if attrs := seg.Op.Attributes(); attrs != nil {
		for i, tag := range inlineTags {
			if value, ok := attrs.Get(tag.attr); ok {
				if flag, isBool := value.(bool); isBool {
					enabled[i] = flag
				}
			}
		}
	}

	for i := len(inlineTags) - 1; i >= 0; i-- {
		if enabled[i] {
			st.inline.WriteString("<" + inlineTags[i].name + ">")
		}
	}
	st.inline.WriteString(seg.Text)
	for i, tag := range inlineTags {
		if enabled[i] {
			st.inline.WriteString("</" + tag.name + ">")
		}
	}
}

// hasInline 判断行内缓冲区是否非空
func (st *renderState) hasInline() bool {
	return st.inline.Len() > 0
}

// flushInline 把行内缓冲区原样写入sink并清空
func (st *renderState) flushInline() error {
	if st.inline.Len() == 0 {
		return nil
	}
	if err := st.write(st.inline.String()); err != nil {
		return err
	}
	st.inline.Reset()
	return nil
}

// write 向sink写入一段文本
func (st *renderState) write(s string) error {
	_, err := io.WriteString(st.w, s)
	return err
}

// listKindOf 解析操作属性中的列表类型
// 无法识别的list值不认领，让行降级到后续处理器
func listKindOf(op *delta.Op) (ListKind, bool) {
	attrs := op.Attributes()
	if attrs == nil {
		return 0, false
	}
	value, ok := attrs.Get("list")
	if !ok {
		return 0, false
	}
	switch value {
	case "ordered":
		return ListOrdered, true
	case "bullet":
		return ListBullet, true
	default:
		return 0, false
	}
}

// headerLevelOf 解析操作属性中的标题级别
// 只接受数值，级别收敛到[1,6]；非数值不认领
func headerLevelOf(op *delta.Op) (int, bool) {
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
