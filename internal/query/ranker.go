package query

import (
	"context"
	"sort"
	"strings"

	"medkb-go/internal/model"
)

// Ranker 是语义模式的排序阶段：给定自由文本，返回按相关度得分
// 降序的文档命中列表。结构化过滤随后在引擎里作为后置条件应用。
type Ranker interface {
	Rank(ctx context.Context, snapshot []model.KbDocument, freeText string) ([]model.RankedHit, error)
}

// MemoryRanker 是确定性的内存打分实现：统计查询词在 title /
// summary / content 中的出现次数并加权求和。它不访问任何外部
// 系统，是测试与无 ES 部署的默认排序阶段。
type MemoryRanker struct{}

// 字段权重：标题命中远强于正文命中。
const (
	titleWeight   = 5
	summaryWeight = 3
	contentWeight = 1
)

// Rank 对快照内的每个文档打分，得分为零的文档不进入结果。
// 同分文档保持快照原始顺序（稳定排序），保证输出确定。
func (MemoryRanker) Rank(_ context.Context, snapshot []model.KbDocument, freeText string) ([]model.RankedHit, error) {
	terms := strings.Fields(strings.ToLower(freeText))
	if len(terms) == 0 {
		return nil, nil
	}

	hits := make([]model.RankedHit, 0, len(snapshot))
	for _, doc := range snapshot {
		score := 0
		title := strings.ToLower(doc.Title)
		summary := strings.ToLower(doc.Summary)
		content := strings.ToLower(doc.Content)
		for _, term := range terms {
			score += strings.Count(title, term) * titleWeight
			score += strings.Count(summary, term) * summaryWeight
			score += strings.Count(content, term) * contentWeight
		}
		if score > 0 {
			hits = append(hits, model.RankedHit{DocID: doc.ID, Score: float64(score)})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits, nil
}
