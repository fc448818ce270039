package delta

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// OpKind 操作类型
// 三种操作类型固定且封闭，不允许扩展
type OpKind int

const (
	// OpInsert 插入内容操作
	OpInsert OpKind = iota
	// OpRetain 保留（跳过）一段内容的操作
	OpRetain
	// OpDelete 删除一段内容的操作
	OpDelete
)

// String 返回操作类型的字符串表示
func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpRetain:
		return "retain"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op Delta中的单个编辑操作
// 操作一经构造不可变；渲染器只读取操作，从不修改
type Op struct {
	kind       OpKind
	value      any            // insert的内容：字符串或任意JSON值（嵌入对象）
	length     int            // retain/delete的跨度长度
	attributes *AttributesMap // 可选的格式化属性
}

// NewInsert 创建插入操作
// 属性只能附加在文本内容上；给非文本内容附加非空属性属于
// 违反构造契约的编程错误，直接panic且不可恢复
func NewInsert(value any, attributes *AttributesMap) Op {
	op, err := TryInsert(value, attributes)
	if err != nil {
		panic(err)
	}
	return op
}

// TryInsert 创建插入操作的校验版本
// 面向不可信输入构造操作的调用方，契约不满足时返回错误而非panic
func TryInsert(value any, attributes *AttributesMap) (Op, error) {
	if _, isText := value.(string); !isText && !attributes.IsEmpty() {
		return Op{}, ErrObjectInsertAttributes
	}
	return Op{
		kind:       OpInsert,
		value:      value,
		attributes: attributes,
	}, nil
}

// NewRetain 创建保留操作
// 长度必须大于零，否则panic
func NewRetain(length int, attributes *AttributesMap) Op {
	if length <= 0 {
		panic(fmt.Sprintf("retain length must be greater than zero, got %d", length))
	}
	return Op{
		kind:       OpRetain,
		length:     length,
		attributes: attributes,
	}
}

// NewDelete 创建删除操作
// 长度必须大于零，否则panic；删除操作永远不携带属性
func NewDelete(length int) Op {
	if length <= 0 {
		panic(fmt.Sprintf("delete length must be greater than zero, got %d", length))
	}
	return Op{
		kind:   OpDelete,
		length: length,
	}
}

// RetainUntilEnd 创建保留到文档末尾的操作
func RetainUntilEnd() Op {
	return NewRetain(math.MaxInt, nil)
}

// Kind 返回操作类型
func (o Op) Kind() OpKind {
	return o.kind
}

// IsInsert 判断是否为插入操作
func (o Op) IsInsert() bool {
	return o.kind == OpInsert
}

// IsTextInsert 判断是否为文本插入操作
func (o Op) IsTextInsert() bool {
	if o.kind != OpInsert {
		return false
	}
	_, ok := o.value.(string)
	return ok
}

// IsRetain 判断是否为保留操作
func (o Op) IsRetain() bool {
	return o.kind == OpRetain
}

// IsDelete 判断是否为删除操作
func (o Op) IsDelete() bool {
	return o.kind == OpDelete
}

// Len 返回操作的长度
// 文本插入为字符数（rune数量），嵌入对象插入固定为1，
// 保留和删除为构造时指定的跨度长度
func (o Op) Len() int {
	switch o.kind {
	case OpInsert:
		if text, ok := o.value.(string); ok {
			return utf8.RuneCountInString(text)
		}
		return 1
	default:
		return o.length
	}
}

// Attributes 返回操作的格式化属性
// 删除操作永远返回nil；空属性集合规范化为nil
func (o Op) Attributes() *AttributesMap {
	if o.kind == OpDelete {
		return nil
	}
	if o.attributes.IsEmpty() {
		return nil
	}
	return o.attributes
}

// Value 返回插入操作的内容
// 只能在插入操作上调用，其他类型的操作调用属于编程错误，
// 直接panic且不可恢复
func (o Op) Value() any {
	if o.kind != OpInsert {
		panic(fmt.Sprintf("retrieving the value of an operation is possible only on insert operations, got %s", o))
	}
	return o.value
}

// Text 返回文本插入操作的字符串内容
// 只能在文本插入操作上调用，否则panic且不可恢复
func (o Op) Text() string {
	if o.kind == OpInsert {
		if text, ok := o.value.(string); ok {
			return text
		}
	}
	panic(fmt.Sprintf("retrieving the text of an operation is possible only on text insert operations, got %s", o))
}

// String 返回操作的可读表示，用于调试输出
func (o Op) String() string {
	var sb strings.Builder
	switch o.kind {
	case OpInsert:
		if text, ok := o.value.(string); ok {
			fmt.Fprintf(&sb, "ins(%s)", strings.ReplaceAll(text, "\n", "⏎"))
		} else {
			fmt.Fprintf(&sb, "ins(%v)", o.value)
		}
	case OpRetain:
		fmt.Fprintf(&sb, "ret(%d)", o.length)
	case OpDelete:
		fmt.Fprintf(&sb, "del(%d)", o.length)
	}
	if attrs := o.Attributes(); attrs != nil {
		fmt.Fprintf(&sb, " + %s", attrs)
	}
	return sb.String()
}
