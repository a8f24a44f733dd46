package service

import (
	"context"

	"medkb-go/internal/classifier"
	"medkb-go/internal/kbcache"
	"medkb-go/internal/model"
	"medkb-go/internal/repository"
	"medkb-go/pkg/log"
)

// ReconcileService 对全语料做一次分类对账：修复历史写入造成的
// 标签/关键词/分类/AI 关联漂移。对账是幂等的，紧接着的第二次
// 扫描应当零更新。
type ReconcileService interface {
	ReconcileAll(ctx context.Context) (int, error)
}

type reconcileService struct {
	repo  repository.KbDocumentRepository
	cache *kbcache.Cache
}

// NewReconcileService 创建一个新的 ReconcileService 实例。
func NewReconcileService(repo repository.KbDocumentRepository, cache *kbcache.Cache) ReconcileService {
	return &reconcileService{repo: repo, cache: cache}
}

// ReconcileAll 扫描整个语料。读取绕过缓存（总是新鲜读）；
// 单个文档更新失败被隔离并记日志，扫描继续；全部更新完成后
// 强制重载一次缓存，绝不在扫描中途重载。
func (s *reconcileService) ReconcileAll(ctx context.Context) (int, error) {
	log.Info("[Reconcile] 开始全语料分类对账")

	docs, err := s.repo.ListAll()
	if err != nil {
		log.Errorf("[Reconcile] 读取语料失败: %v", err)
		return 0, err
	}

	updated := 0
	for i := range docs {
		doc := &docs[i]
		fields := driftFields(doc)
		if len(fields) == 0 {
			continue
		}
		if err := s.repo.Update(doc.ID, fields); err != nil {
			log.Errorf("[Reconcile] 更新文档失败（隔离，继续扫描）, id: %s, error: %v", doc.ID, err)
			continue
		}
		updated++
	}

	// 对账结束后强制重载缓存一次
	if _, err := s.cache.Get(ctx, true); err != nil {
		log.Warnf("[Reconcile] 对账后强制重载缓存失败: %v", err)
	}

	log.Infof("[Reconcile] 对账完成, 共扫描 %d 个文档, 修复 %d 个", len(docs), updated)
	return updated, nil
}

// driftFields 比较存量值与按当前规则重推的应有值，返回需要
// 修正的字段集合；无漂移返回空。
func driftFields(doc *model.KbDocument) map[string]interface{} {
	derived := classifier.Derive(doc)
	fields := make(map[string]interface{})

	if doc.Category != derived.Category {
		fields["category"] = derived.Category
	}
	if !doc.Tags.Equal(derived.Tags) {
		fields["tags"] = derived.Tags
	}
	if !doc.Keywords.Equal(derived.Keywords) {
		fields["keywords"] = derived.Keywords
	}
	if doc.IsLinkedToAI != derived.IsLinkedToAI {
		fields["is_linked_to_ai"] = derived.IsLinkedToAI
	}

	// 权重与关联标记的一致性：为 0 当且仅当未关联。
	linked := derived.IsLinkedToAI
	switch {
	case linked && doc.AIRelevance == 0:
		fields["ai_relevance"] = 1
	case !linked && doc.AIRelevance != 0:
		fields["ai_relevance"] = 0
	}

	return fields
}
