package delta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrObjectInsertAttributes 非文本插入内容不允许携带属性
	ErrObjectInsertAttributes = errors.New("cannot combine attributes with an inserted value other than a string")

	// ErrZeroLengthSpan 保留/删除操作的长度必须大于零
	ErrZeroLengthSpan = errors.New("retain and delete lengths must be greater than zero")

	// ErrInvalidOp 操作缺少insert/retain/delete判别字段
	ErrInvalidOp = errors.New("operation must contain exactly one of insert, retain or delete")
)

// Delta 有序的编辑操作序列
// 序列顺序即文档顺序；作为渲染输入时视为不可变
type Delta []Op

// Length 返回所有操作的长度之和
func (d Delta) Length() int {
	total := 0
	for _, op := range d {
		total += op.Len()
	}
	return total
}

// Parse 从JSON解析Delta
// 同时接受裸操作数组和Quill风格的 {"ops": [...]} 包装对象
func Parse(data []byte) (Delta, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty delta payload")
	}

	if trimmed[0] == '{' {
		var wrapper struct {
			Ops *[]Op `json:"ops"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse delta: %w", err)
		}
		if wrapper.Ops == nil {
			return nil, fmt.Errorf("delta object is missing the ops field")
		}
		return *wrapper.Ops, nil
	}

	var ops []Op
	if err := json.Unmarshal(trimmed, &ops); err != nil {
		return nil, fmt.Errorf("failed to parse delta: %w", err)
	}
	return ops, nil
}

// opJSON Op的JSON线格式
// insert/retain/delete三个判别字段恰好出现一个
type opJSON struct {
	Insert     json.RawMessage `json:"insert,omitempty"`
	Retain     *int            `json:"retain,omitempty"`
	Delete     *int            `json:"delete,omitempty"`
	Attributes *AttributesMap  `json:"attributes,omitempty"`
}

// MarshalJSON 实现json.Marshaler接口
func (o Op) MarshalJSON() ([]byte, error) {
	wire := opJSON{}
	switch o.kind {
	case OpInsert:
		raw, err := json.Marshal(o.value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal insert value: %v", err)
		}
		wire.Insert = raw
	case OpRetain:
		length := o.length
		wire.Retain = &length
	case OpDelete:
		length := o.length
		wire.Delete = &length
	}
	if attrs := o.Attributes(); attrs != nil {
		wire.Attributes = attrs
	}
	return json.Marshal(wire)
}

// UnmarshalJSON 实现json.Unmarshaler接口
// 反序列化走校验构造路径：来自外部输入的非法操作返回错误而非panic
func (o *Op) UnmarshalJSON(data []byte) error {
	var wire opJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch {
	case wire.Insert != nil:
		var value any
		if err := json.Unmarshal(wire.Insert, &value); err != nil {
			return fmt.Errorf("failed to unmarshal insert value: %v", err)
		}
		op, err := TryInsert(value, wire.Attributes)
		if err != nil {
			return err
		}
		*o = op
	case wire.Retain != nil:
		if *wire.Retain <= 0 {
			return ErrZeroLengthSpan
		}
		*o = Op{kind: OpRetain, length: *wire.Retain, attributes: wire.Attributes}
	case wire.Delete != nil:
		if *wire.Delete <= 0 {
			return ErrZeroLengthSpan
		}
		*o = Op{kind: OpDelete, length: *wire.Delete}
	default:
		return ErrInvalidOp
	}
	return nil
}
