// Package id generates document identifiers.
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator 定义文档 ID 生成器接口
type Generator interface {
	Generate() string
}

// ULIDGenerator 使用 ULID 算法生成时间可排序的 128 位唯一 ID
//
// 格式: 01AN4Z07BY79KA1307SR9X4MV3
//   - 前 10 字符: 时间戳 (毫秒)
//   - 后 16 字符: 随机熵
type ULIDGenerator struct {
	entropy io.Reader
	mu      sync.Mutex
}

// NewULIDGenerator 创建新的 ULID 生成器
func NewULIDGenerator() *ULIDGenerator {
	// 单调熵源保证同一毫秒内的 ID 仍然有序
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate 实现 Generator 接口
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// UUIDGenerator 生成随机 UUID v4
type UUIDGenerator struct{}

// Generate 实现 Generator 接口
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// NewGenerator 根据类型创建生成器
//
// 支持的类型:
//   - "ulid": ULIDGenerator (默认)
//   - "uuid": UUIDGenerator
func NewGenerator(kind string) Generator {
	switch kind {
	case "uuid":
		return UUIDGenerator{}
	default:
		return NewULIDGenerator()
	}
}
