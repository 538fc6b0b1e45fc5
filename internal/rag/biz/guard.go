package biz

import (
	"regexp"
	"strings"

	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
)

// 查询分类结果。
const (
	ClassRelevant   = "relevant"
	ClassIrrelevant = "irrelevant"
)

// 查询意图。
const (
	IntentProductSearch  = "product_search"
	IntentFeatureInquiry = "feature_inquiry"
	IntentPriceInquiry   = "price_inquiry"
)

// RefusalResponse 不相关或不安全查询的固定回复。
const RefusalResponse = "দুঃখিত, আমি শুধুমাত্র পণ্য সম্পর্কিত প্রশ্নের উত্তর দিতে পারি।"

// jailbreakPatterns 越狱提示词规则，按类别分组。
var jailbreakPatterns = compileAll(
	// 指令覆盖
	`ignore (?:all|previous|above|earlier).*instructions`,
	`disregard (?:all|previous|above|earlier).*instructions`,
	`forget (?:all|previous|above|earlier).*instructions`,
	`do not follow (?:all|previous|above|earlier).*instructions`,
	`instead.*(?:say|output|respond|reply|answer|give)`,
	// 已知越狱
	`\bdan\b.*(?:do anything now|no restrictions|no limits)`,
	`development mode`,
	`dev mode`,
	`translate.*(?:as|to).*".*"`,
	`\baim\b.*(?:intelligent|machiavellian)`,
	`\bbish\b.*(?:no limits|unrestricted)`,
	`vzex-g`,
	// 角色扮演
	`(?:pretend|imagine|act|roleplay).*(?:as|like|that you are|you're|you are)`,
	`you are now`,
	`you are no longer`,
	`you are an ai without`,
	`simulate.*(?:scenario|conversation|situation)`,
	// 诱导
	`(?:for educational|for research|for academic|for fictional|hypothetical) purposes`,
	`no ethical|no moral|amoral|immoral`,
	`don't worry about(?:.*ethics|.*rules|.*guidelines|.*restrictions)`,
	`this is (?:just|only) hypothetical`,
	`there are no real-world consequences`,
	`no need to include (?:warnings|disclaimers|cautions)`,
	// 特殊格式
	`output:.*(?:unfiltered|direct|raw)`,
	`respond with (?:only|just).*(?:yes|no|one word)`,
	`do not add anything else`,
	`don't include.*(?:explanation|context|background|warning)`,
	// 会话劫持
	`input:.*output:`,
	`user:.*assistant:`,
	`english:.*spanish:`,
	`\{.*\}`,
)

var suspiciousKeywords = []string{
	"jailbreak", "bypass", "restriction", "limitation", "constraint",
	"safeguard", "filter", "override", "workaround", "circumvent",
	"exploit", "hack", "force", "make you", "compel you", "unfiltered",
	"unrestricted", "uncensored", "no ethics", "no morals", "no rules",
}

var relevanceKeywords = []string{
	// 电商
	"order", "product", "price", "shipping", "delivery", "return", "refund",
	"payment", "discount", "stock", "availability", "size", "color",
	"cancel", "track", "tracking", "invoice", "customer service", "support",
	"warranty", "exchange", "buy", "purchase", "cart", "checkout",
	"store", "sale", "offer", "coupon", "gift card", "address",
	"পণ্য", "দাম", "মূল্য", "অর্ডার", "ডেলিভারি", "কিনতে", "কিনব", "কেনা",
	"অফার", "ছাড়", "ফেরত", "রিভিউ", "ওয়ারেন্টি", "সাইজ", "রং",
	"মোবাইল", "ফোন", "জুতা", "জামা",
	// 寒暄
	"hello", "hi", "hey", "help", "assist", "question", "how can i",
	"can you", "i want to", "i need", "tell me about", "information",
	"সাহায্য", "জানতে চাই", "বলুন", "কেমন", "কোন", "কি",
}

// entityRules 基于关键词的品类识别，按顺序匹配第一条。
var entityRules = []struct {
	keywords []string
	category string
}{
	{[]string{"মোবাইল", "ফোন"}, "electronics"},
	{[]string{"জুতা", "জামা"}, "clothing"},
}

var intentRules = []struct {
	keywords []string
	intent   string
}{
	{[]string{"দাম", "মূল্য", "কত টাকা", "price", "cost"}, IntentPriceInquiry},
	{[]string{"বৈশিষ্ট্য", "ফিচার", "স্পেসিফিকেশন", "feature", "specs"}, IntentFeatureInquiry},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Verdict 查询检查结果。
type Verdict struct {
	Classification string            `json:"classification"`
	Dangerous      bool              `json:"dangerous"`
	Intent         string            `json:"intent"`
	Entities       map[string]string `json:"entities,omitempty"`
}

// Allowed 查询是否可以继续处理。
func (v *Verdict) Allowed() bool {
	return v.Classification == ClassRelevant
}

// Guard 基于规则的查询安全与相关性检查。
type Guard struct {
	enabled bool
}

// NewGuard 创建查询检查器。disabled 时所有查询都视为相关。
func NewGuard(enabled bool) *Guard {
	return &Guard{enabled: enabled}
}

// Check 检查查询。
func (g *Guard) Check(query string) *Verdict {
	v := &Verdict{
		Classification: ClassRelevant,
		Intent:         ClassifyIntent(query),
		Entities:       ExtractEntities(query),
	}
	if !g.enabled {
		return v
	}
	if IsDangerous(query) {
		v.Dangerous = true
		v.Classification = ClassIrrelevant
		return v
	}
	if !IsRelevant(query) {
		v.Classification = ClassIrrelevant
	}
	return v
}

// IsDangerous 判断查询是否像越狱提示词。
func IsDangerous(query string) bool {
	q := strings.ToLower(query)
	for _, re := range jailbreakPatterns {
		if re.MatchString(q) {
			return true
		}
	}
	return textutil.ContainsAny(q, suspiciousKeywords)
}

// IsRelevant 判断查询是否与电商问答相关。
func IsRelevant(query string) bool {
	return textutil.ContainsAny(query, relevanceKeywords)
}

// ExtractEntities 提取查询中的品类实体。
func ExtractEntities(query string) map[string]string {
	for _, rule := range entityRules {
		if textutil.ContainsAny(query, rule.keywords) {
			return map[string]string{"category": rule.category}
		}
	}
	return nil
}

// ClassifyIntent 识别查询意图，默认为商品搜索。
func ClassifyIntent(query string) string {
	for _, rule := range intentRules {
		if textutil.ContainsAny(query, rule.keywords) {
			return rule.intent
		}
	}
	return IntentProductSearch
}
