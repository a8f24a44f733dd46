// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"

	"medkb-go/internal/config"
	"medkb-go/internal/kbcache"
	"medkb-go/internal/model"
	"medkb-go/internal/pipeline"
	"medkb-go/internal/query"
	"medkb-go/internal/repository"
	"medkb-go/pkg/log"
)

// DownloadInfoDTO 封装了文件下载链接所需的信息。
type DownloadInfoDTO struct {
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
	FileSize    int64  `json:"fileSize"`
}

// CorpusStats 是语料的概览统计，由缓存快照推导。
type CorpusStats struct {
	Total       int            `json:"total"`
	LinkedToAI  int            `json:"linkedToAI"`
	PerCategory map[string]int `json:"perCategory"`
}

// DocumentService 接口定义了知识库查询表面的业务操作。
// 每个写操作都在返回前使语料缓存失效，保证下一次查询不会
// 拿到跨越失效点的陈旧快照。
type DocumentService interface {
	Query(ctx context.Context, p query.Params) ([]model.KbDocument, error)
	Stats(ctx context.Context) (*CorpusStats, error)
	LinkToAI(ctx context.Context, id string, relevance int) error
	UnlinkFromAI(ctx context.Context, id string) error
	IncrementDownload(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DownloadURL(ctx context.Context, id string) (*DownloadInfoDTO, error)
}

type documentService struct {
	repo    repository.KbDocumentRepository
	cache   *kbcache.Cache
	engine  *query.Engine
	store   pipeline.ObjectStore // 可为 nil（纯文本语料部署）
	indexer pipeline.Indexer     // 可为 nil
	knowCfg config.KnowledgeConfig
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	repo repository.KbDocumentRepository,
	cache *kbcache.Cache,
	engine *query.Engine,
	store pipeline.ObjectStore,
	indexer pipeline.Indexer,
	knowCfg config.KnowledgeConfig,
) DocumentService {
	return &documentService{
		repo:    repo,
		cache:   cache,
		engine:  engine,
		store:   store,
		indexer: indexer,
		knowCfg: knowCfg,
	}
}

// Query 对缓存的语料快照执行过滤/检索。
func (s *documentService) Query(ctx context.Context, p query.Params) ([]model.KbDocument, error) {
	snapshot, err := s.cache.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	return s.engine.Run(ctx, snapshot, p), nil
}

// Stats 由缓存快照推导语料概览。
func (s *documentService) Stats(ctx context.Context) (*CorpusStats, error) {
	snapshot, err := s.cache.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	stats := &CorpusStats{Total: len(snapshot), PerCategory: make(map[string]int)}
	for i := range snapshot {
		stats.PerCategory[snapshot[i].Category]++
		if snapshot[i].IsLinkedToAI {
			stats.LinkedToAI++
		}
	}
	return stats, nil
}

// LinkToAI 把文档纳入 AI 语料。relevance 被压到至少 1，
// 保证"权重为 0 当且仅当未关联"的关系不会被调用方破坏。
func (s *documentService) LinkToAI(ctx context.Context, id string, relevance int) error {
	if relevance < 1 {
		relevance = 1
	}
	err := s.repo.Update(id, map[string]interface{}{
		"is_linked_to_ai": true,
		"ai_relevance":    relevance,
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	log.Infof("[DocumentService] 文档已关联 AI 语料, id: %s, relevance: %d", id, relevance)
	return nil
}

// UnlinkFromAI 把文档移出 AI 语料，权重同时归零。
func (s *documentService) UnlinkFromAI(ctx context.Context, id string) error {
	err := s.repo.Update(id, map[string]interface{}{
		"is_linked_to_ai": false,
		"ai_relevance":    0,
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	log.Infof("[DocumentService] 文档已移出 AI 语料, id: %s", id)
	return nil
}

// IncrementDownload 下载计数加一。
func (s *documentService) IncrementDownload(ctx context.Context, id string) error {
	if err := s.repo.IncrementDownloads(id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// Delete 删除一个文档：记录删除是权威动作，底层字节与语义索引
// 的删除都是尽力而为。
func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.FindByID(id)
	if err != nil {
		return errors.New("文档不存在")
	}

	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("删除文档记录失败: %w", err)
	}

	if doc.ObjectName != "" && s.store != nil {
		if err := s.store.Remove(ctx, doc.ObjectName); err != nil {
			log.Warnf("[DocumentService] 删除底层字节失败（忽略）, object: %s, error: %v", doc.ObjectName, err)
		}
	}
	if s.indexer != nil {
		if err := s.indexer.Delete(ctx, id); err != nil {
			log.Warnf("[DocumentService] 删除语义索引条目失败（忽略）, id: %s, error: %v", id, err)
		}
	}

	s.cache.Invalidate(ctx)
	log.Infof("[DocumentService] 文档已删除, id: %s, title: %s", id, doc.Title)
	return nil
}

// DownloadURL 为文档签发新的预签名下载链接并计一次下载。
// 存储的指针可能已过期，这里总是凭对象名重新签发。
func (s *documentService) DownloadURL(ctx context.Context, id string) (*DownloadInfoDTO, error) {
	doc, err := s.repo.FindByID(id)
	if err != nil {
		return nil, errors.New("文档不存在")
	}
	if doc.ObjectName == "" || s.store == nil {
		return nil, errors.New("该文档没有可下载的原始文件")
	}

	url, err := s.store.PresignedURL(ctx, doc.ObjectName, s.knowCfg.PresignExpiry())
	if err != nil {
		return nil, fmt.Errorf("签发下载链接失败: %w", err)
	}

	if err := s.IncrementDownload(ctx, id); err != nil {
		log.Warnf("[DocumentService] 下载计数失败（忽略）, id: %s, error: %v", id, err)
	}

	return &DownloadInfoDTO{
		FileName:    doc.Title,
		DownloadURL: url,
		FileSize:    doc.FileSize,
	}, nil
}
