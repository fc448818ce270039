package delta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// AttributesMap 格式化属性集合
// 键唯一、保持插入顺序的字符串到JSON值的映射
// 值可以是bool、float64、string或嵌套的JSON结构
type AttributesMap struct {
	keys   []string
	values map[string]any
}

// NewAttributes 创建空的属性集合
func NewAttributes() *AttributesMap {
	return &AttributesMap{
		values: make(map[string]any),
	}
}

// Set 设置属性值，返回自身以支持链式调用
// 已存在的键保持原插入位置，只更新值
func (m *AttributesMap) Set(key string, value any) *AttributesMap {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get 获取属性值
func (m *AttributesMap) Get(key string) (any, bool) {
	if m == nil || m.values == nil {
		return nil, false
	}
	value, ok := m.values[key]
	return value, ok
}

// Delete 删除属性
func (m *AttributesMap) Delete(key string) {
	if m == nil || m.values == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// IsEmpty 判断属性集合是否为空
func (m *AttributesMap) IsEmpty() bool {
	return m == nil || len(m.keys) == 0
}

// Len 返回属性数量
func (m *AttributesMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys 按插入顺序返回所有键
func (m *AttributesMap) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Clone 深拷贝属性集合（值为浅拷贝）
func (m *AttributesMap) Clone() *AttributesMap {
	if m == nil {
		return nil
	}
	clone := NewAttributes()
	for _, key := range m.keys {
		clone.Set(key, m.values[key])
	}
	return clone
}

// Equal 判断两个属性集合内容是否相同（忽略顺序）
func (m *AttributesMap) Equal(other *AttributesMap) bool {
	if m.Len() != other.Len() {
		return false
	}
	if m == nil || other == nil {
		return true
	}
	for key, value := range m.values {
		otherValue, ok := other.values[key]
		if !ok || !reflect.DeepEqual(value, otherValue) {
			return false
		}
	}
	return true
}

// MarshalJSON 实现json.Marshaler接口，按插入顺序序列化
func (m *AttributesMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valueBytes, err := json.Marshal(m.values[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attribute %q: %v", key, err)
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 实现json.Unmarshaler接口
// 使用json.Decoder逐个读取token以保留键的出现顺序
func (m *AttributesMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[string]any)

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attributes must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("invalid attribute key: %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode attribute %q: %v", key, err)
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		m.Set(key, value)
	}

	// 消费结尾的 '}'
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// String 返回属性集合的可读表示，用于调试输出
func (m *AttributesMap) String() string {
	if m.IsEmpty() {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", key, m.values[key])
	}
	sb.WriteByte('}')
	return sb.String()
}
