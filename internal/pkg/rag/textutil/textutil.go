// Package textutil 提供文本归一化、分块及向量计算等工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashString 计算字符串的 SHA-256 哈希值。
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// RuneLen 返回字符串的 Unicode 字符数。
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
// maxLen <= 0 表示不截断。
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// Abbreviate 截断字符串并在被截断时追加省略号。
func Abbreviate(s string, maxLen int) string {
	t := TruncateString(s, maxLen)
	if t == s {
		return s
	}
	return t + "..."
}

// ContainsAny 检查 s 是否包含任意一个关键词（忽略大小写）。
func ContainsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
