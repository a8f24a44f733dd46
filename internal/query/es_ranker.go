package query

import (
	"context"

	"medkb-go/internal/model"
	"medkb-go/pkg/embedding"
	"medkb-go/pkg/es"
	"medkb-go/pkg/log"
)

// EsRanker 是基于 Elasticsearch 的语义排序阶段：查询向量化后
// 走 knn + BM25 的两阶段混合检索。向量化失败时降级为纯 BM25，
// 排序本身不因 Embedding 后端故障而失败。
type EsRanker struct {
	indexName       string
	embeddingClient embedding.Client // 可为 nil
	topK            int
}

// NewEsRanker 创建 ES 排序阶段。
func NewEsRanker(indexName string, embeddingClient embedding.Client, topK int) *EsRanker {
	if topK <= 0 {
		topK = 20
	}
	return &EsRanker{indexName: indexName, embeddingClient: embeddingClient, topK: topK}
}

// Rank 忽略快照参数，直接对 ES 索引检索。返回的命中随后由引擎
// 映射回快照文档，不在快照中的命中被丢弃。
func (r *EsRanker) Rank(ctx context.Context, _ []model.KbDocument, freeText string) ([]model.RankedHit, error) {
	var vector []float32
	if r.embeddingClient != nil {
		v, err := r.embeddingClient.CreateEmbedding(ctx, freeText)
		if err != nil {
			log.Warnf("[EsRanker] 查询向量化失败，降级为纯 BM25 检索: %v", err)
		} else {
			vector = v
		}
	}
	return es.SearchRanked(ctx, r.indexName, freeText, vector, r.topK)
}
