package service

import (
	"context"
	"fmt"

	"medkb-go/internal/repository"
	"medkb-go/pkg/log"
	"medkb-go/pkg/tasks"
)

// TaskService 处理从消息队列消费的后台任务，实现 kafka.TaskProcessor。
type TaskService struct {
	repo      repository.KbDocumentRepository
	reconcile ReconcileService
}

// NewTaskService 创建一个新的 TaskService 实例。
func NewTaskService(repo repository.KbDocumentRepository, reconcile ReconcileService) *TaskService {
	return &TaskService{repo: repo, reconcile: reconcile}
}

// Handle 按任务类型分派。返回错误会让消费者按重试策略重投。
func (s *TaskService) Handle(ctx context.Context, task tasks.KbTask) error {
	switch task.Type {
	case tasks.TypeVisibilityCheck:
		return s.checkVisibility(task)
	case tasks.TypeReconcile:
		_, err := s.reconcile.ReconcileAll(ctx)
		return err
	default:
		log.Warnf("[TaskService] 未知的任务类型: %s", task.Type)
		return nil
	}
}

// checkVisibility 复查一个摄取时未确认可见的文档。仍读不到时
// 返回错误，交给消费者的计数重试；最终仍缺失只能说明存储滞后
// 超出预期，记录错误供人工跟进。
func (s *TaskService) checkVisibility(task tasks.KbTask) error {
	docs, err := s.repo.ListAll()
	if err != nil {
		return fmt.Errorf("可见性复查读取语料失败: %w", err)
	}

	for i := range docs {
		d := &docs[i]
		if d.ID == task.DocumentID || (task.IngestID != "" && d.IngestID == task.IngestID) {
			log.Infof("[TaskService] 可见性复查通过, docID: %s, title: %s", d.ID, d.Title)
			return nil
		}
	}
	return fmt.Errorf("文档在语料中仍不可见: id=%s, title=%s", task.DocumentID, task.Title)
}
