// Package classifier 实现了上传分类规则：把上传者选择的类目标签
// 映射为规范分类、默认受众、标签/关键词种子以及 AI 关联标记。
// 这里的映射表是唯一的事实来源；所有函数都是纯函数，相同输入
// 永远产生相同输出（对账任务的幂等性依赖这一点）。
package classifier

import (
	"strings"

	"medkb-go/internal/model"
)

// 规范分类的封闭枚举。
const (
	CategoryAIDocuments = "ai-documents"
	CategoryProtocols   = "protocols"
	CategoryMultimedia  = "multimedia"
	CategoryResearch    = "research"
	CategoryReports     = "reports"
)

// 受众标签。
const (
	AudienceProfessional = "professional"
	AudienceStudent      = "student"
	AudiencePatient      = "patient"
)

// categoryRule 描述一个上传类目标签对应的规范分类与默认受众。
type categoryRule struct {
	category string
	audience []string
}

// uploadCategoryRules 把上传界面上的类目标签（闭集）映射到规范分类。
// 兼容原系统的西语标签与英文标签两套写法。
var uploadCategoryRules = map[string]categoryRule{
	"documentos ia":      {CategoryAIDocuments, []string{AudienceProfessional}},
	"ai corpus":          {CategoryAIDocuments, []string{AudienceProfessional}},
	"protocolos":         {CategoryProtocols, []string{AudienceProfessional, AudienceStudent}},
	"protocols":          {CategoryProtocols, []string{AudienceProfessional, AudienceStudent}},
	"multimedia":         {CategoryMultimedia, []string{AudienceProfessional, AudienceStudent, AudiencePatient}},
	"para estudiantes":   {CategoryResearch, []string{AudienceStudent}},
	"for students":       {CategoryResearch, []string{AudienceStudent}},
	"para profesionales": {CategoryResearch, []string{AudienceProfessional}},
	"for professionals":  {CategoryResearch, []string{AudienceProfessional}},
	"informes":           {CategoryReports, []string{AudienceProfessional}},
	"reports":            {CategoryReports, []string{AudienceProfessional}},
}

// linkageRules 是"分类 → 强制 AI 关联"的声明式规则表。
// protocols 与 multimedia 的关联是跨类目自动规则，对账任务
// 也会按同一张表重新断言。
var linkageRules = map[string]bool{
	CategoryAIDocuments: true,
	CategoryResearch:    true,
	CategoryProtocols:   true,
	CategoryMultimedia:  true,
	CategoryReports:     false,
}

// categoryTokens 列出每个分类的"暗示性" token，用于从历史数据的
// 标签信号反推分类，以及校验分类一致性不变量。
var categoryTokens = map[string][]string{
	CategoryProtocols:   {"protocols", "protocolos", "protocol", "protocolo"},
	CategoryMultimedia:  {"multimedia", "video", "audio", "media"},
	CategoryAIDocuments: {"ai-documents", "ai-residente", "documentos-ia", "ai-corpus"},
	CategoryResearch:    {"research", "investigacion"},
	CategoryReports:     {"reports", "informes"},
}

// Result 是一次分类的完整输出。
type Result struct {
	Category     string
	Audience     model.StringList
	Tags         model.StringList
	Keywords     model.StringList
	IsLinkedToAI bool
}

// Classify 根据上传类目标签与文件扩展名推导分类结果。
// 不在映射表中的临时类目字符串回退为 research + professional。
func Classify(uploadCategory, ext string) Result {
	label := normalizeLabel(uploadCategory)
	rule, ok := uploadCategoryRules[label]
	if !ok {
		rule = categoryRule{CategoryResearch, []string{AudienceProfessional}}
	}

	// 种子集合：{上传类目 token, 规范分类, 扩展名}，去重。
	// 规范分类 token 绝不能缺席，分类一致性依赖这个种子。
	seeds := dedup([]string{slugify(label), rule.category, strings.ToLower(strings.TrimPrefix(ext, "."))})

	return Result{
		Category:     rule.category,
		Audience:     append(model.StringList{}, rule.audience...),
		Tags:         append(model.StringList{}, seeds...),
		Keywords:     append(model.StringList{}, seeds...),
		IsLinkedToAI: linkageRules[rule.category],
	}
}

// Derive 依据当前规则重推一个已存文档"应有"的分类信号。
// 对账任务用它与存量值比对；对同一文档连续调用两次得到相同结果。
func Derive(doc *model.KbDocument) model.ClassificationSignals {
	category := canonicalCategory(doc)

	// tags / keywords 必须各自包含分类 token；缺失的追加在尾部，
	// 已有元素保持原顺序，保证幂等。
	tags := ensureToken(doc.Tags, category)
	keywords := ensureToken(doc.Keywords, category)

	audience := doc.TargetAudience
	if len(audience) == 0 {
		audience = model.StringList{AudienceProfessional}
	}

	return model.ClassificationSignals{
		Category:     category,
		Audience:     audience,
		Tags:         tags,
		Keywords:     keywords,
		IsLinkedToAI: linkageRules[category],
	}
}

// ImpliesCategory 判断标签集合中是否存在暗示指定分类的 token。
func ImpliesCategory(tags model.StringList, category string) bool {
	for _, token := range categoryTokens[category] {
		if tags.Contains(token) {
			return true
		}
	}
	return false
}

// IsCanonical 判断一个分类值是否属于封闭枚举。
func IsCanonical(category string) bool {
	_, ok := linkageRules[category]
	return ok
}

// canonicalCategory 解析文档应有的规范分类：存量值已是规范分类则
// 保留；否则从标签信号反推；再不行回退为 research。
func canonicalCategory(doc *model.KbDocument) string {
	if IsCanonical(doc.Category) {
		return doc.Category
	}
	for _, category := range []string{CategoryProtocols, CategoryMultimedia, CategoryAIDocuments, CategoryReports, CategoryResearch} {
		if ImpliesCategory(doc.Tags, category) || ImpliesCategory(doc.Keywords, category) {
			return category
		}
	}
	return CategoryResearch
}

// ensureToken 返回包含指定 token 的集合；已包含时原样返回。
func ensureToken(list model.StringList, token string) model.StringList {
	if list.Contains(token) {
		return list
	}
	out := make(model.StringList, 0, len(list)+1)
	out = append(out, list...)
	return append(out, token)
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// slugify 把类目标签变成 token 形式，例如 "AI corpus" -> "ai-corpus"。
func slugify(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "-")
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
