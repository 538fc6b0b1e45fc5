package textutil

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultChunkSize 默认分块大小（字符数）。
	DefaultChunkSize = 512
	// DefaultChunkOverlap 默认相邻分块重叠字符数。
	DefaultChunkOverlap = 50
)

// ErrInvalidChunkParams 表示分块参数不合法，属于配置错误。
var ErrInvalidChunkParams = errors.New("invalid chunk parameters")

// sentenceTerminators 句末标点。'.' 仅在其后为空格时视为句末，避免切开数字。
var sentenceTerminators = []rune{'।', '॥', '!', '?'}

// Normalize 对文本做 NFC 归一化，压缩连续空白为单个空格并去除首尾空白。
func Normalize(text string) string {
	text = norm.NFC.String(text)
	return strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
}

// ValidateChunkParams 校验分块参数。
func ValidateChunkParams(chunkSize, overlap int) error {
	switch {
	case chunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkParams, chunkSize)
	case overlap < 0:
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunkParams, overlap)
	case overlap >= chunkSize:
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidChunkParams, overlap, chunkSize)
	}
	return nil
}

// SplitIntoChunks 将文本归一化后按字符窗口切分成相互重叠的块。
//
// 每个窗口优先在句末标点处断开，其次在空格处断开，断点必须落在窗口后半段；
// 都找不到时在窗口末尾硬切。下一个窗口从 end-overlap 开始，起点严格递增。
// 归一化后长度不超过 chunkSize 的文本返回单个块。
func SplitIntoChunks(text string, chunkSize, overlap int) ([]string, error) {
	if err := ValidateChunkParams(chunkSize, overlap); err != nil {
		return nil, err
	}

	text = Normalize(text)
	runes := []rune(text)
	n := len(runes)
	if n <= chunkSize {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for start < n {
		end := min(start+chunkSize, n)
		if end < n {
			end = findBreak(runes, start, end, chunkSize)
		}

		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// findBreak 在 [start, end) 内从后向前寻找断点，返回新的 end。
func findBreak(runes []rune, start, end, chunkSize int) int {
	// p > start + chunkSize/2，用整数比较避免奇数窗口的取整误差
	acceptable := func(p int) bool { return 2*p > 2*start+chunkSize }

	if p := lastIndexOf(runes, start, end, func(i int) bool { return isTerminator(runes, i) }); p >= 0 && acceptable(p) {
		return p + 1
	}
	if p := lastIndexOf(runes, start, end, func(i int) bool { return runes[i] == ' ' }); p >= 0 && acceptable(p) {
		return p
	}
	return end
}

func lastIndexOf(runes []rune, start, end int, match func(int) bool) int {
	for i := end - 1; i >= start; i-- {
		if match(i) {
			return i
		}
	}
	return -1
}

func isTerminator(runes []rune, i int) bool {
	r := runes[i]
	if r == '.' {
		return i+1 < len(runes) && runes[i+1] == ' '
	}
	for _, t := range sentenceTerminators {
		if r == t {
			return true
		}
	}
	return false
}
