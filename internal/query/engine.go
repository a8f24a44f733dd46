// Package query 实现了对语料快照的过滤与相关度检索。
// Run 是其输入的纯函数：不访问存储、无副作用，相同快照与参数
// 在重复调用间产出完全相同的成员与顺序。
package query

import (
	"context"
	"strings"

	"medkb-go/internal/classifier"
	"medkb-go/internal/model"
	"medkb-go/pkg/log"
)

// Params 是查询表面接受的过滤参数包。
type Params struct {
	FreeText string `form:"q" json:"q"`
	Category string `form:"category" json:"category"`
	FileType string `form:"fileType" json:"fileType"`
	Audience string `form:"audience" json:"audience"`
	Area     string `form:"area" json:"area"`
	Semantic bool   `form:"semantic" json:"semantic"`
}

// Engine 组合了结构化过滤与可选的语义排序阶段。
type Engine struct {
	ranker Ranker
}

// NewEngine 创建查询引擎。ranker 为 nil 时语义模式退化为
// 确定性的内存打分。
func NewEngine(ranker Ranker) *Engine {
	if ranker == nil {
		ranker = MemoryRanker{}
	}
	return &Engine{ranker: ranker}
}

// Run 对快照执行查询。
//   - 自由文本为空：跳过打分，结构化过滤直接作用于全量快照，保持快照原始顺序；
//   - 普通模式：对 title/summary/content 做大小写不敏感的子串匹配；
//   - 语义模式：先由排序阶段按相关度得分排序，结构化过滤作为后置条件
//     与相关度合取，绝不取代它。
func (e *Engine) Run(ctx context.Context, snapshot []model.KbDocument, p Params) []model.KbDocument {
	docs := snapshot

	if text := strings.TrimSpace(p.FreeText); text != "" {
		if p.Semantic {
			docs = e.rankSemantic(ctx, snapshot, text)
		} else {
			docs = filterByText(snapshot, text)
		}
	}

	out := make([]model.KbDocument, 0, len(docs))
	for _, doc := range docs {
		if matchesFilters(&doc, p) {
			out = append(out, doc)
		}
	}
	return out
}

// rankSemantic 执行语义排序阶段；排序失败时回退为确定性的内存打分，
// 保证查询本身不因排序后端故障而失败。
func (e *Engine) rankSemantic(ctx context.Context, snapshot []model.KbDocument, text string) []model.KbDocument {
	hits, err := e.ranker.Rank(ctx, snapshot, text)
	if err != nil {
		log.Warnf("[QueryEngine] 语义排序失败，回退为内存打分: %v", err)
		hits, _ = MemoryRanker{}.Rank(ctx, snapshot, text)
	}

	byID := make(map[string]*model.KbDocument, len(snapshot))
	for i := range snapshot {
		byID[snapshot[i].ID] = &snapshot[i]
	}

	docs := make([]model.KbDocument, 0, len(hits))
	for _, hit := range hits {
		if doc, ok := byID[hit.DocID]; ok {
			docs = append(docs, *doc)
		}
	}
	return docs
}

// matchesFilters 应用全部结构化过滤条件（合取）。
func matchesFilters(doc *model.KbDocument, p Params) bool {
	if p.Category != "" && !matchesCategory(doc, p.Category) {
		return false
	}
	if p.FileType != "" && !strings.EqualFold(doc.FileType, p.FileType) {
		return false
	}
	if p.Audience != "" && !doc.TargetAudience.Contains(strings.ToLower(p.Audience)) {
		return false
	}
	if p.Area != "" && !matchesArea(doc, p.Area) {
		return false
	}
	return true
}

// matchesCategory 按分类过滤。ai-documents 是一个伪分类，谓词刻意
// 比相等更宽：AI 关联可以授予主分类是其他值的文档，所以命中条件是
// 已关联 AI、分类本身是 AI 类值、或标签/关键词含 AI token 三者之一。
func matchesCategory(doc *model.KbDocument, category string) bool {
	if category != classifier.CategoryAIDocuments {
		return doc.Category == category
	}
	return doc.IsLinkedToAI ||
		doc.Category == classifier.CategoryAIDocuments ||
		doc.Category == "ai-residente" ||
		classifier.ImpliesCategory(doc.Tags, classifier.CategoryAIDocuments) ||
		classifier.ImpliesCategory(doc.Keywords, classifier.CategoryAIDocuments)
}

// matchesArea 按专业领域过滤：除了标签与关键词，还对 title 与
// summary 做子串匹配。
func matchesArea(doc *model.KbDocument, area string) bool {
	needle := strings.ToLower(area)
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	for _, kw := range doc.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(doc.Title), needle) ||
		strings.Contains(strings.ToLower(doc.Summary), needle)
}

// filterByText 普通模式的自由文本过滤：title/summary/content 任一
// 包含查询串即命中，保持快照原始顺序。
func filterByText(snapshot []model.KbDocument, text string) []model.KbDocument {
	needle := strings.ToLower(text)
	out := make([]model.KbDocument, 0, len(snapshot))
	for _, doc := range snapshot {
		if strings.Contains(strings.ToLower(doc.Title), needle) ||
			strings.Contains(strings.ToLower(doc.Summary), needle) ||
			strings.Contains(strings.ToLower(doc.Content), needle) {
			out = append(out, doc)
		}
	}
	return out
}
