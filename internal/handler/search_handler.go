package handler

import (
	"net/http"

	"medkb-go/internal/query"
	"medkb-go/internal/service"
	"medkb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了知识库检索相关的处理器。
type SearchHandler struct {
	docService service.DocumentService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(docService service.DocumentService) *SearchHandler {
	return &SearchHandler{docService: docService}
}

// Search 是处理知识库检索请求的 Gin 处理函数。
// 过滤参数全部可选；自由文本为空时等价于结构化列表查询。
func (h *SearchHandler) Search(c *gin.Context) {
	var params query.Params
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的查询参数"})
		return
	}
	log.Infof("[SearchHandler] 收到检索请求, q: '%s', category: '%s', semantic: %v",
		params.FreeText, params.Category, params.Semantic)

	results, err := h.docService.Query(c.Request.Context(), params)
	if err != nil {
		log.Errorf("[SearchHandler] 检索服务返回错误, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "检索失败"})
		return
	}

	log.Infof("[SearchHandler] 检索成功, 返回 %d 条结果", len(results))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": results, "message": "success"})
}
