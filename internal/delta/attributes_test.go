package delta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAttributesSetGet 测试属性的基本读写
func TestAttributesSetGet(t *testing.T) {
	attrs := NewAttributes().
		Set("bold", true).
		Set("header", float64(2))

	value, ok := attrs.Get("bold")
	assert.True(t, ok)
	assert.Equal(t, true, value)

	value, ok = attrs.Get("header")
	assert.True(t, ok)
	assert.Equal(t, float64(2), value)

	_, ok = attrs.Get("missing")
	assert.False(t, ok)

	assert.False(t, attrs.IsEmpty())
	assert.Equal(t, 2, attrs.Len())
}

// TestAttributesNilReceiver 测试nil属性集合的安全访问
func TestAttributesNilReceiver(t *testing.T) {
	var attrs *AttributesMap
	assert.True(t, attrs.IsEmpty())
	assert.Equal(t, 0, attrs.Len())
	_, ok := attrs.Get("bold")
	assert.False(t, ok)
}

// TestAttributesOrderPreserved 测试键的插入顺序在序列化时保留
func TestAttributesOrderPreserved(t *testing.T) {
	attrs := NewAttributes().
		Set("strike", true).
		Set("bold", true).
		Set("italic", false)

	assert.Equal(t, []string{"strike", "bold", "italic"}, attrs.Keys())

	data, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.Equal(t, `{"strike":true,"bold":true,"italic":false}`, string(data))

	// 更新已有键不改变位置
	attrs.Set("bold", false)
	assert.Equal(t, []string{"strike", "bold", "italic"}, attrs.Keys())
}

// TestAttributesJSONRoundTrip 测试反序列化保留JSON中的键顺序
func TestAttributesJSONRoundTrip(t *testing.T) {
	input := `{"underline":true,"list":"bullet","header":3}`

	var attrs AttributesMap
	require.NoError(t, json.Unmarshal([]byte(input), &attrs))
	assert.Equal(t, []string{"underline", "list", "header"}, attrs.Keys())

	value, ok := attrs.Get("list")
	assert.True(t, ok)
	assert.Equal(t, "bullet", value)

	// 数值按JSON惯例解码为float64
	value, ok = attrs.Get("header")
	assert.True(t, ok)
	assert.Equal(t, float64(3), value)

	out, err := json.Marshal(&attrs)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

// TestAttributesDelete 测试删除属性
func TestAttributesDelete(t *testing.T) {
	attrs := NewAttributes().
		Set("bold", true).
		Set("italic", true)

	attrs.Delete("bold")
	assert.Equal(t, []string{"italic"}, attrs.Keys())
	_, ok := attrs.Get("bold")
	assert.False(t, ok)

	// 删除不存在的键不出错
	attrs.Delete("missing")
	assert.Equal(t, 1, attrs.Len())
}

// TestAttributesCloneEqual 测试拷贝与比较
func TestAttributesCloneEqual(t *testing.T) {
	attrs := NewAttributes().
		Set("bold", true).
		Set("list", "ordered")

	clone := attrs.Clone()
	assert.True(t, attrs.Equal(clone))

	clone.Set("bold", false)
	assert.False(t, attrs.Equal(clone))

	// 顺序不同但内容相同的集合相等
	reordered := NewAttributes().
		Set("list", "ordered").
		Set("bold", true)
	assert.True(t, attrs.Equal(reordered))
}

// TestAttributesUnmarshalRejectsNonObject 测试非对象输入被拒绝
func TestAttributesUnmarshalRejectsNonObject(t *testing.T) {
	var attrs AttributesMap
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &attrs))
	assert.Error(t, json.Unmarshal([]byte(`"bold"`), &attrs))
}
