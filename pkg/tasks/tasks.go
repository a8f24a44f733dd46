// Package tasks defines the structure for background jobs that are sent to Kafka.
package tasks

// 任务类型。
const (
	// TypeVisibilityCheck 摄取结束时未能确认可见性的文档，延后复查。
	TypeVisibilityCheck = "visibility_check"
	// TypeReconcile 触发一次全语料分类对账。
	TypeReconcile = "reconcile"
)

// KbTask represents a background knowledge-base job.
type KbTask struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id,omitempty"`
	IngestID   string `json:"ingest_id,omitempty"`
	Title      string `json:"title,omitempty"`
}

// Key 返回用于重试计数的任务标识。
func (t KbTask) Key() string {
	if t.DocumentID != "" {
		return t.Type + ":" + t.DocumentID
	}
	return t.Type
}
