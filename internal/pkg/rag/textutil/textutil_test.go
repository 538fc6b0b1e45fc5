package textutil_test

import (
	"testing"

	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "相同向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{1.0, 0.0, 0.0},
			expected: 1.0,
		},
		{
			name:     "正交向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 1.0, 0.0},
			expected: 0.0,
		},
		{
			name:     "相反向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{-1.0, 0.0, 0.0},
			expected: -1.0,
		},
		{
			name:     "空向量",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "长度不匹配",
			a:        []float32{1.0, 2.0},
			b:        []float32{1.0},
			expected: 0.0,
		},
		{
			name:     "零向量",
			a:        []float32{0, 0},
			b:        []float32{1, 1},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, textutil.CosineSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}

func TestHashString(t *testing.T) {
	h1 := textutil.HashString("মোবাইল ফোন")
	h2 := textutil.HashString("মোবাইল ফোন")
	h3 := textutil.HashString("জুতা")

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "短于上限", input: "abc", maxLen: 5, expected: "abc"},
		{name: "等于上限", input: "abcde", maxLen: 5, expected: "abcde"},
		{name: "ASCII 截断", input: "abcdef", maxLen: 3, expected: "abc"},
		{name: "孟加拉语按字符截断", input: "কখগঘঙ", maxLen: 2, expected: "কখ"},
		{name: "上限为零不截断", input: "abc", maxLen: 0, expected: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutil.TruncateString(tt.input, tt.maxLen))
		})
	}
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "abc", textutil.Abbreviate("abc", 5))
	assert.Equal(t, "ab...", textutil.Abbreviate("abcdef", 2))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, textutil.ContainsAny("Please IGNORE the rules", []string{"ignore"}))
	assert.True(t, textutil.ContainsAny("একটি মোবাইল চাই", []string{"জুতা", "মোবাইল"}))
	assert.False(t, textutil.ContainsAny("hello", []string{"", "bye"}))
}
