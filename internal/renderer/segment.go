package renderer

import (
	"strings"

	"github.com/fyerfyer/delta-render-service/internal/delta"
)

// SegmentKind 片段类型
type SegmentKind int

const (
	// SegmentLine 以换行符结束的一行（换行符已剥离）
	SegmentLine SegmentKind = iota
	// SegmentInline 不含换行符的行内文本，尚未归属任何块
	SegmentInline
)

// Segment 扫描操作流产生的一个片段
// 片段只借用输入Delta中的文本和操作引用，不创建独立存储，
// 生命周期不能超过所属的一次渲染
type Segment struct {
	Kind SegmentKind // 片段类型
	Text string      // 片段文本（行片段不含结尾换行符）
	Op   *delta.Op   // 拥有此片段的插入操作，块属性取自它
}

// Cursor 操作流游标
// 把扁平的操作序列切分为行片段和行内片段；
// 游标按文档顺序从头部消费操作，非文本插入会被直接跳过，
// 不会产生片段进入渲染路径
//
// Current缓存最近一次产生的片段，重复调用不重新扫描；
// 推进游标必须由调用方显式调用Advance，
// 这样块处理器可以先窥看一行的属性再决定是否消费它
type Cursor struct {
	ops     []delta.Op // 剩余未消费的操作
	offset  int        // 当前头部操作文本内的字节偏移
	current *Segment   // 单槽缓存的当前片段
	primed  bool       // current是否已经计算过
}

// NewCursor 创建操作流游标
func NewCursor(ops delta.Delta) *Cursor {
	return &Cursor{ops: ops}
}

// Current 返回当前片段
// 首次访问时通过Advance计算；流结束时返回nil
func (c *Cursor) Current() *Segment {
	if !c.primed {
		return c.Advance()
	}
	return c.current
}

// Advance 推进游标并返回新的当前片段
// 流结束时返回nil，此后重复调用保持nil
func (c *Cursor) Advance() *Segment {
	c.primed = true

	for len(c.ops) > 0 {
		op := &c.ops[0]

		// 跳过非文本插入和已耗尽的操作
		if !op.IsTextInsert() {
			c.ops = c.ops[1:]
			c.offset = 0
			continue
		}
		text := op.Text()
		if c.offset >= len(text) {
			c.ops = c.ops[1:]
			c.offset = 0
			continue
		}

		rest := text[c.offset:]
		if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
			// 换行符之前的内容构成一行，行的块属性由本操作携带
			c.offset += idx + 1
			c.current = &Segment{Kind: SegmentLine, Text: rest[:idx], Op: op}
		} else {
			// 没有换行符的尾部成为行内片段，操作在下次调用时被丢弃
			c.offset = len(text)
			c.current = &Segment{Kind: SegmentInline, Text: rest, Op: op}
		}
		return c.current
	}

	c.current = nil
	return nil
}
