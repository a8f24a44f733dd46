package query

import (
	"context"
	"errors"
	"testing"

	"medkb-go/internal/classifier"
	"medkb-go/internal/model"
	"medkb-go/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.InitDefault()
	m.Run()
}

func protocolDoc(id, title string, audience ...string) model.KbDocument {
	return model.KbDocument{
		ID:             id,
		Title:          title,
		Category:       classifier.CategoryProtocols,
		TargetAudience: audience,
		Tags:           model.StringList{"protocols"},
		IsLinkedToAI:   true,
	}
}

func TestRunNoFiltersKeepsSnapshotOrder(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "1", Title: "alpha"},
		{ID: "2", Title: "beta"},
		{ID: "3", Title: "gamma"},
	}
	out := NewEngine(nil).Run(context.Background(), snapshot, Params{})
	require.Len(t, out, 3)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "2", out[1].ID)
	assert.Equal(t, "3", out[2].ID)
}

// ai-documents 的命中条件比分类相等更宽：主分类是 protocols
// 但已关联 AI 的文档也要出现。
func TestCategoryAIDocumentsIsBroad(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "linked", Category: classifier.CategoryProtocols, IsLinkedToAI: true},
		{ID: "direct", Category: classifier.CategoryAIDocuments},
		{ID: "legacy", Category: "ai-residente"},
		{ID: "tagged", Category: classifier.CategoryResearch, Tags: model.StringList{"ai-corpus"}},
		{ID: "plain", Category: classifier.CategoryResearch},
	}
	out := NewEngine(nil).Run(context.Background(), snapshot, Params{Category: classifier.CategoryAIDocuments})

	ids := make([]string, 0, len(out))
	for _, doc := range out {
		ids = append(ids, doc.ID)
	}
	assert.Equal(t, []string{"linked", "direct", "legacy", "tagged"}, ids)
}

func TestCategoryExactForOtherCategories(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "p", Category: classifier.CategoryProtocols},
		{ID: "r", Category: classifier.CategoryResearch},
	}
	out := NewEngine(nil).Run(context.Background(), snapshot, Params{Category: classifier.CategoryProtocols})
	require.Len(t, out, 1)
	assert.Equal(t, "p", out[0].ID)
}

func TestCategoryAndAudienceConjunction(t *testing.T) {
	snapshot := []model.KbDocument{
		protocolDoc("1", "Protocolo de sepsis", classifier.AudienceProfessional, classifier.AudienceStudent),
		protocolDoc("2", "Protocolo de RCP", classifier.AudienceProfessional),
		protocolDoc("3", "Protocolo de triaje", classifier.AudienceStudent),
	}
	out := NewEngine(nil).Run(context.Background(), snapshot, Params{
		Category: classifier.CategoryProtocols,
		Audience: classifier.AudienceStudent,
	})

	require.Len(t, out, 2)
	// 过滤不改变快照内的相对顺序
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "3", out[1].ID)
}

func TestFileTypeFilterIsCaseInsensitive(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "1", FileType: "pdf"},
		{ID: "2", FileType: "txt"},
	}
	out := NewEngine(nil).Run(context.Background(), snapshot, Params{FileType: "PDF"})
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ID)
}

func TestAreaMatchesTagsKeywordsTitleSummary(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "tag", Tags: model.StringList{"cardiología"}},
		{ID: "kw", Keywords: model.StringList{"cardiología intervencionista"}},
		{ID: "title", Title: "Guía de Cardiología"},
		{ID: "summary", Summary: "resumen de cardiología"},
		{ID: "none", Title: "Pediatría"},
	}
	out := NewEngine(nil).Run(context.Background(), snapshot, Params{Area: "cardiología"})
	assert.Len(t, out, 4)
}

func TestFreeTextSubstringKeepsOrder(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "1", Title: "Manual de sepsis"},
		{ID: "2", Summary: "manejo de la sepsis grave"},
		{ID: "3", Content: "la SEPSIS es una urgencia"},
		{ID: "4", Title: "otro tema"},
	}
	out := NewEngine(nil).Run(context.Background(), snapshot, Params{FreeText: "sepsis"})
	require.Len(t, out, 3)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "2", out[1].ID)
	assert.Equal(t, "3", out[2].ID)
}

func TestRunIsDeterministic(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "1", Title: "sepsis sepsis", Category: classifier.CategoryProtocols},
		{ID: "2", Content: "sepsis", Category: classifier.CategoryProtocols},
		{ID: "3", Summary: "sepsis", Category: classifier.CategoryResearch},
	}
	p := Params{FreeText: "sepsis", Semantic: true}
	e := NewEngine(nil)

	first := e.Run(context.Background(), snapshot, p)
	for i := 0; i < 5; i++ {
		again := e.Run(context.Background(), snapshot, p)
		require.Equal(t, first, again)
	}
}

func TestMemoryRankerWeightsTitleOverContent(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "content", Content: "sepsis sepsis sepsis"},
		{ID: "title", Title: "sepsis"},
		{ID: "none", Title: "otro"},
	}
	hits, err := MemoryRanker{}.Rank(context.Background(), snapshot, "sepsis")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// 单次标题命中（权重 5）压过三次正文命中（权重 1）
	assert.Equal(t, "title", hits[0].DocID)
	assert.Equal(t, "content", hits[1].DocID)
}

func TestMemoryRankerDropsZeroScores(t *testing.T) {
	snapshot := []model.KbDocument{{ID: "1", Title: "alfa"}}
	hits, err := MemoryRanker{}.Rank(context.Background(), snapshot, "beta")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// 语义模式下结构化过滤是排序结果之上的后置条件，而非替代。
func TestSemanticPostFilter(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "1", Title: "sepsis", Category: classifier.CategoryResearch},
		{ID: "2", Title: "sepsis sepsis", Category: classifier.CategoryProtocols},
	}
	out := NewEngine(nil).Run(context.Background(), snapshot, Params{
		FreeText: "sepsis",
		Semantic: true,
		Category: classifier.CategoryProtocols,
	})
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].ID)
}

type failingRanker struct{}

func (failingRanker) Rank(context.Context, []model.KbDocument, string) ([]model.RankedHit, error) {
	return nil, errors.New("backend down")
}

// 排序后端故障时退回内存打分，查询本身不失败。
func TestSemanticFallbackOnRankerError(t *testing.T) {
	snapshot := []model.KbDocument{
		{ID: "1", Title: "sepsis"},
		{ID: "2", Title: "otro"},
	}
	out := NewEngine(failingRanker{}).Run(context.Background(), snapshot, Params{
		FreeText: "sepsis",
		Semantic: true,
	})
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ID)
}
