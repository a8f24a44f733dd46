package es

import (
	"context"

	"medkb-go/internal/model"
)

// KbIndexer 把针对知识库索引的读写收敛为一个可注入的对象，
// 摄取流水线与文档服务通过它同步/删除语义索引条目。
type KbIndexer struct {
	IndexName string
}

// NewKbIndexer 创建一个面向指定索引的 KbIndexer。
func NewKbIndexer(indexName string) *KbIndexer {
	return &KbIndexer{IndexName: indexName}
}

// Index 写入或覆盖一条文档索引。
func (x *KbIndexer) Index(ctx context.Context, doc model.KbEsDocument) error {
	return IndexDocument(ctx, x.IndexName, doc)
}

// Delete 删除一条文档索引。文档不存在不视为错误。
func (x *KbIndexer) Delete(ctx context.Context, docID string) error {
	return DeleteDocument(ctx, x.IndexName, docID)
}
