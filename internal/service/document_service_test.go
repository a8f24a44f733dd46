package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"medkb-go/internal/classifier"
	"medkb-go/internal/config"
	"medkb-go/internal/kbcache"
	"medkb-go/internal/model"
	"medkb-go/internal/pipeline"
	"medkb-go/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// svcFakeRepo 是文档服务测试用的全功能内存仓库。
type svcFakeRepo struct {
	records []model.KbDocument
}

func (f *svcFakeRepo) find(id string) *model.KbDocument {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i]
		}
	}
	return nil
}

func (f *svcFakeRepo) Create(doc *model.KbDocument) error {
	f.records = append(f.records, *doc)
	return nil
}

func (f *svcFakeRepo) Update(id string, fields map[string]interface{}) error {
	doc := f.find(id)
	if doc == nil {
		return errors.New("not found")
	}
	if v, ok := fields["is_linked_to_ai"]; ok {
		doc.IsLinkedToAI = v.(bool)
	}
	if v, ok := fields["ai_relevance"]; ok {
		doc.AIRelevance = v.(int)
	}
	return nil
}

func (f *svcFakeRepo) FindByID(id string) (*model.KbDocument, error) {
	doc := f.find(id)
	if doc == nil {
		return nil, errors.New("not found")
	}
	out := *doc
	return &out, nil
}

func (f *svcFakeRepo) ListAll() ([]model.KbDocument, error) {
	out := make([]model.KbDocument, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *svcFakeRepo) Delete(id string) error {
	for i := range f.records {
		if f.records[i].ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *svcFakeRepo) IncrementDownloads(id string) error {
	doc := f.find(id)
	if doc == nil {
		return errors.New("not found")
	}
	doc.Downloads++
	return nil
}

type svcFakeStore struct {
	removed  []string
	presigns []string
}

func (f *svcFakeStore) Put(_ context.Context, objectName string, _ []byte, _ string) (string, error) {
	return objectName, nil
}

func (f *svcFakeStore) PresignedURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	f.presigns = append(f.presigns, objectName)
	return "http://store.local/" + objectName + "?sig=fresh", nil
}

func (f *svcFakeStore) Remove(_ context.Context, objectName string) error {
	f.removed = append(f.removed, objectName)
	return nil
}

type svcFakeIndexer struct {
	deleted []string
}

func (f *svcFakeIndexer) Index(context.Context, model.KbEsDocument) error { return nil }
func (f *svcFakeIndexer) Delete(_ context.Context, docID string) error {
	f.deleted = append(f.deleted, docID)
	return nil
}

func newDocService(repo *svcFakeRepo, store *svcFakeStore, idx pipeline.Indexer) DocumentService {
	cache := kbcache.New(repo, nil, 30*time.Second)
	return NewDocumentService(repo, cache, query.NewEngine(nil), store, idx, config.KnowledgeConfig{})
}

func linkedResearchDoc(id string) model.KbDocument {
	return model.KbDocument{
		ID:           id,
		Title:        "Estudio " + id,
		Category:     classifier.CategoryResearch,
		Tags:         model.StringList{"research"},
		Keywords:     model.StringList{"research"},
		IsLinkedToAI: true,
		AIRelevance:  1,
	}
}

// 移出 AI 语料后，下一次按 ai-documents 过滤的查询必须已经
// 看不到该文档：写操作的缓存失效就落在这两次查询之间。
func TestUnlinkExcludesFromAICorpusQueries(t *testing.T) {
	repo := &svcFakeRepo{records: []model.KbDocument{linkedResearchDoc("d1")}}
	svc := newDocService(repo, &svcFakeStore{}, nil)
	ctx := context.Background()

	out, err := svc.Query(ctx, query.Params{Category: classifier.CategoryAIDocuments})
	require.NoError(t, err)
	require.Len(t, out, 1)

	require.NoError(t, svc.UnlinkFromAI(ctx, "d1"))

	out, err = svc.Query(ctx, query.Params{Category: classifier.CategoryAIDocuments})
	require.NoError(t, err)
	assert.Empty(t, out)

	doc := repo.find("d1")
	assert.False(t, doc.IsLinkedToAI)
	assert.Equal(t, 0, doc.AIRelevance)
}

// 关联权重被压到至少 1：权重为 0 只能意味着未关联。
func TestLinkToAIClampsRelevance(t *testing.T) {
	repo := &svcFakeRepo{records: []model.KbDocument{{
		ID:       "d1",
		Category: classifier.CategoryReports,
	}}}
	svc := newDocService(repo, &svcFakeStore{}, nil)
	ctx := context.Background()

	require.NoError(t, svc.LinkToAI(ctx, "d1", 0))
	assert.Equal(t, 1, repo.find("d1").AIRelevance)

	require.NoError(t, svc.LinkToAI(ctx, "d1", -3))
	assert.Equal(t, 1, repo.find("d1").AIRelevance)

	require.NoError(t, svc.LinkToAI(ctx, "d1", 4))
	assert.Equal(t, 4, repo.find("d1").AIRelevance)
	assert.True(t, repo.find("d1").IsLinkedToAI)
}

func TestLinkToAIUnknownDocument(t *testing.T) {
	svc := newDocService(&svcFakeRepo{}, &svcFakeStore{}, nil)
	assert.Error(t, svc.LinkToAI(context.Background(), "missing", 1))
}

func TestStatsFromSnapshot(t *testing.T) {
	repo := &svcFakeRepo{records: []model.KbDocument{
		linkedResearchDoc("d1"),
		{ID: "d2", Category: classifier.CategoryReports},
		{ID: "d3", Category: classifier.CategoryResearch, IsLinkedToAI: true},
	}}
	svc := newDocService(repo, &svcFakeStore{}, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.LinkedToAI)
	assert.Equal(t, 2, stats.PerCategory[classifier.CategoryResearch])
	assert.Equal(t, 1, stats.PerCategory[classifier.CategoryReports])
}

// 删除以记录为权威：记录删掉后字节与索引条目也被清理，
// 后续查询不再返回该文档。
func TestDeleteRemovesRecordBytesAndIndexEntry(t *testing.T) {
	doc := linkedResearchDoc("d1")
	doc.ObjectName = "documents/d1/estudio.pdf"
	repo := &svcFakeRepo{records: []model.KbDocument{doc}}
	store := &svcFakeStore{}
	idx := &svcFakeIndexer{}
	svc := newDocService(repo, store, idx)
	ctx := context.Background()

	out, err := svc.Query(ctx, query.Params{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	require.NoError(t, svc.Delete(ctx, "d1"))

	assert.Equal(t, []string{"documents/d1/estudio.pdf"}, store.removed)
	assert.Equal(t, []string{"d1"}, idx.deleted)

	out, err = svc.Query(ctx, query.Params{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDeleteUnknownDocument(t *testing.T) {
	svc := newDocService(&svcFakeRepo{}, &svcFakeStore{}, nil)
	assert.Error(t, svc.Delete(context.Background(), "missing"))
}

// 下载链接总是凭对象名重新签发，不复用记录里可能已过期的指针。
func TestDownloadURLRepresignsAndCounts(t *testing.T) {
	doc := linkedResearchDoc("d1")
	doc.ObjectName = "documents/d1/estudio.pdf"
	doc.FileURL = "http://store.local/documents/d1/estudio.pdf?sig=stale"
	doc.FileSize = 1234
	repo := &svcFakeRepo{records: []model.KbDocument{doc}}
	store := &svcFakeStore{}
	svc := newDocService(repo, store, nil)

	info, err := svc.DownloadURL(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "Estudio d1", info.FileName)
	assert.Equal(t, int64(1234), info.FileSize)
	assert.Contains(t, info.DownloadURL, "sig=fresh")
	assert.Equal(t, []string{"documents/d1/estudio.pdf"}, store.presigns)
	assert.Equal(t, int64(1), repo.find("d1").Downloads)
}

func TestDownloadURLWithoutBytes(t *testing.T) {
	repo := &svcFakeRepo{records: []model.KbDocument{linkedResearchDoc("d1")}}
	svc := newDocService(repo, &svcFakeStore{}, nil)
	_, err := svc.DownloadURL(context.Background(), "d1")
	assert.Error(t, err)
}
