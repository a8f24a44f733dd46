// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"medkb-go/internal/model"
	"medkb-go/internal/pipeline"
	"medkb-go/internal/service"
	"medkb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责处理文档上传（摄取）相关的 API 请求。
type UploadHandler struct {
	ingestService service.IngestService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(ingestService service.IngestService) *UploadHandler {
	return &UploadHandler{ingestService: ingestService}
}

// ingestResponse 是摄取成功时返回给前端的结构。
type ingestResponse struct {
	Document            *model.KbDocument `json:"document"`
	VisibilityConfirmed bool              `json:"visibilityConfirmed"`
	CreatedAt           model.LocalTime   `json:"createdAt"`
}

// Upload 处理单文件上传请求：表单携带 file 与类目选择，同步走完
// 摄取流水线后返回新建的文档。
func (h *UploadHandler) Upload(c *gin.Context) {
	category := c.PostForm("category")
	author := c.PostForm("author")
	if category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少类目参数"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未能获取上传的文件"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}

	up := pipeline.Upload{
		FileName:       header.Filename,
		Data:           data,
		DeclaredKind:   strings.TrimPrefix(filepath.Ext(header.Filename), "."),
		ContentType:    header.Header.Get("Content-Type"),
		UploadCategory: category,
		Author:         author,
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), up)
	if err != nil {
		log.Error("Upload: 摄取失败", err)
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrStoreWrite) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"code":    status,
			"message": "文档摄取失败: " + err.Error(),
		})
		return
	}

	message := "文档摄取成功"
	if !result.VisibilityConfirmed {
		// 数据已持久化，只是尚未确认可见；对调用方仍是成功。
		message = "文档摄取成功（可见性待确认）"
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": message,
		"data": ingestResponse{
			Document:            result.Document,
			VisibilityConfirmed: result.VisibilityConfirmed,
			CreatedAt:           model.LocalTime(result.Document.CreatedAt),
		},
	})
}
