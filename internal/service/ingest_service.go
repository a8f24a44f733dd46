package service

import (
	"context"
	"os"
	"path/filepath"

	"medkb-go/internal/pipeline"
	"medkb-go/internal/repository"
	"medkb-go/pkg/log"
	"medkb-go/pkg/tasks"
)

// ProduceFunc 把一个后台任务投递到消息队列。
type ProduceFunc func(task tasks.KbTask) error

// IngestService 是上传表面与摄取流水线之间的业务层：
// 同步执行摄取，并为可见性未确认的写入投递后台复查任务。
type IngestService interface {
	Ingest(ctx context.Context, up pipeline.Upload) (*pipeline.IngestResult, error)
	SeedImport(ctx context.Context, dir string)
}

type ingestService struct {
	processor *pipeline.Processor
	repo      repository.KbDocumentRepository
	produce   ProduceFunc // 可为 nil（无消息队列的部署）
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(processor *pipeline.Processor, repo repository.KbDocumentRepository, produce ProduceFunc) IngestService {
	return &ingestService{processor: processor, repo: repo, produce: produce}
}

// Ingest 同步执行摄取流水线。写入成功但可见性未确认时，投递一个
// visibility_check 任务让后台消费者稍后复查；摄取结果照常返回，
// 数据事实上已被持久化，绝不把这种情况报告为失败。
func (s *ingestService) Ingest(ctx context.Context, up pipeline.Upload) (*pipeline.IngestResult, error) {
	result, err := s.processor.Ingest(ctx, up)
	if err != nil {
		return nil, err
	}

	if !result.VisibilityConfirmed && s.produce != nil {
		task := tasks.KbTask{
			Type:       tasks.TypeVisibilityCheck,
			DocumentID: result.Document.ID,
			IngestID:   result.Document.IngestID,
			Title:      result.Document.Title,
		}
		if err := s.produce(task); err != nil {
			log.Warnf("[IngestService] 投递可见性复查任务失败, docID: %s, error: %v", result.Document.ID, err)
		}
	}

	return result, nil
}

// SeedImport 扫描目录下文件并通过标准摄取流程导入（幂等：
// 已存在同名标题的文件跳过）。上传类目按子目录名推断，文件直接
// 位于根目录时归入 AI 语料。
func (s *ingestService) SeedImport(ctx context.Context, dir string) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("SeedImport: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	existing := make(map[string]struct{})
	if docs, err := s.repo.ListAll(); err == nil {
		for i := range docs {
			existing[docs[i].Title] = struct{}{}
		}
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		fileName := info.Name()
		if _, ok := existing[fileName]; ok {
			log.Infof("SeedImport: 已存在，跳过: %s", fileName)
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("SeedImport: 读取文件失败: %s, err=%v", path, err)
			return nil
		}

		category := "AI corpus"
		if rel, err := filepath.Rel(dir, path); err == nil {
			if sub := filepath.Dir(rel); sub != "." {
				category = filepath.Base(sub)
			}
		}

		result, err := s.Ingest(ctx, pipeline.Upload{
			FileName:       fileName,
			Data:           data,
			UploadCategory: category,
			Author:         "system",
		})
		if err != nil {
			log.Warnf("SeedImport: 导入失败: %s, err=%v", path, err)
			return nil
		}
		log.Infof("SeedImport: 导入完成: %s, docID=%s", fileName, result.Document.ID)
		return nil
	})
	if walkErr != nil {
		log.Warnf("SeedImport: 遍历目录发生错误: %v", walkErr)
	}
}
