package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
	"github.com/kart-io/seeksense/internal/rag/metrics"
	"github.com/kart-io/seeksense/pkg/llm"
)

const (
	// maxContextChars 上下文超过该长度时只保留得分最高的文档。
	maxContextChars = 4000
	// fallbackDocs 上下文过长时保留的文档数。
	fallbackDocs = 2
	// fallbackContentChars 上下文过长时每篇文档保留的字符数。
	fallbackContentChars = 500

	// ApologyNoAnswer 模型返回空答案时的回复。
	ApologyNoAnswer = "দুঃখিত, আমি এই প্রশ্নের উত্তর দিতে পারছি না।"
	// apologyErrorPrefix 模型调用失败时的回复前缀。
	apologyErrorPrefix = "দুঃখিত, একটি ত্রুটি ঘটেছে: "
)

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// SystemPrompt 可选的系统提示词。
	SystemPrompt string
}

// Generator 根据重组后的文档生成回答。
type Generator struct {
	chat    llm.ChatProvider
	config  GeneratorConfig
	metrics *metrics.RAGMetrics
}

// NewGenerator 创建生成器实例。
func NewGenerator(chat llm.ChatProvider, config *GeneratorConfig, m *metrics.RAGMetrics) *Generator {
	g := &Generator{chat: chat, metrics: m}
	if config != nil {
		g.config = *config
	}
	return g
}

// Generate 生成回答。不返回错误：模型失败或空答案都转换为致歉语。
func (g *Generator) Generate(ctx context.Context, query string, docs []*model.ReassembledDocument) string {
	prompt := BuildPrompt(query, docs)

	start := time.Now()
	answer, err := g.chat.Generate(ctx, prompt, g.config.SystemPrompt)
	if g.metrics != nil {
		g.metrics.RecordLLMCall(time.Since(start), err)
	}
	if err != nil {
		logger.Errorw("answer generation failed", "provider", g.chat.Name(), "error", err.Error())
		return apologyErrorPrefix + err.Error()
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		logger.Warnw("empty answer from chat provider", "provider", g.chat.Name())
		return ApologyNoAnswer
	}
	logger.Debugw("answer generated", "provider", g.chat.Name(), "length", textutil.RuneLen(answer))
	return answer
}

// BuildPrompt 渲染孟加拉语商品问答提示词。
func BuildPrompt(query string, docs []*model.ReassembledDocument) string {
	text := renderContext(docs, 0)
	if textutil.RuneLen(text) > maxContextChars {
		ranked := make([]*model.ReassembledDocument, len(docs))
		copy(ranked, docs)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].TopScore > ranked[j].TopScore
		})
		if len(ranked) > fallbackDocs {
			ranked = ranked[:fallbackDocs]
		}
		text = renderContext(ranked, fallbackContentChars)
	}

	return fmt.Sprintf("নিম্নলিখিত পণ্যের তথ্য ব্যবহার করে প্রশ্নের উত্তর দিন:\n\n%s\n\nগ্রাহকের প্রশ্ন: %s\n\nউত্তর:", text, query)
}

// renderContext 拼接文档上下文。limit > 0 时截断内容并追加省略号。
func renderContext(docs []*model.ReassembledDocument, limit int) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		content := documentText(doc)
		if limit > 0 {
			content = textutil.TruncateString(content, limit) + "..."
		}
		parts = append(parts, fmt.Sprintf("পণ্যের শিরোনাম: %s\nবিবরণ: %s", doc.Title, content))
	}
	return strings.Join(parts, "\n\n")
}

func documentText(doc *model.ReassembledDocument) string {
	if doc.Kind == model.PayloadPaired && doc.Content == "" {
		return doc.Paired.Text()
	}
	return doc.Content
}
