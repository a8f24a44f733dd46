// Package model 定义了与数据库表对应的 Go 结构体。
package model

// KbEsDocument 代表存储在 Elasticsearch 中的知识库文档结构。
// 每个 KbDocument 对应一条 ES 记录，供语义排序阶段检索。
type KbEsDocument struct {
	DocID        string    `json:"doc_id"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	Tags         []string  `json:"tags"`
	Audience     []string  `json:"audience"`
	IsLinkedToAI bool      `json:"is_linked_to_ai"`
	Vector       []float32 `json:"vector,omitempty"` // 正文摘要的向量表示，可缺省
}

// RankedHit 是语义排序阶段返回的单条结果：文档 ID 加相关度得分。
type RankedHit struct {
	DocID string  `json:"docId"`
	Score float64 `json:"score"`
}
