// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"medkb-go/internal/service"
	"medkb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// Stats 返回语料概览统计。
func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.docService.Stats(c.Request.Context())
	if err != nil {
		log.Error("Stats: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取语料统计失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取语料统计成功",
		"data":    stats,
	})
}

// LinkRequest 定义了 AI 关联 API 的请求体结构。
type LinkRequest struct {
	Relevance int `json:"relevance"`
}

// LinkToAI 处理把文档纳入 AI 语料的请求。
func (h *DocumentHandler) LinkToAI(c *gin.Context) {
	id := c.Param("id")
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	if err := h.docService.LinkToAI(c.Request.Context(), id, req.Relevance); err != nil {
		log.Error("LinkToAI: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "关联 AI 语料失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "已关联 AI 语料"})
}

// UnlinkFromAI 处理把文档移出 AI 语料的请求。
func (h *DocumentHandler) UnlinkFromAI(c *gin.Context) {
	id := c.Param("id")
	if err := h.docService.UnlinkFromAI(c.Request.Context(), id); err != nil {
		log.Error("UnlinkFromAI: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "移出 AI 语料失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "已移出 AI 语料"})
}

// IncrementDownload 处理显式的下载计数请求。
func (h *DocumentHandler) IncrementDownload(c *gin.Context) {
	id := c.Param("id")
	if err := h.docService.IncrementDownload(c.Request.Context(), id); err != nil {
		log.Error("IncrementDownload: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "下载计数失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "下载计数成功"})
}

// DeleteDocument 处理删除文档的请求。
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := h.docService.Delete(c.Request.Context(), id); err != nil {
		log.Error("DeleteDocument: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除文档失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "文档删除成功"})
}

// GenerateDownloadURL 处理获取文档下载链接的请求。
func (h *DocumentHandler) GenerateDownloadURL(c *gin.Context) {
	id := c.Param("id")
	info, err := h.docService.DownloadURL(c.Request.Context(), id)
	if err != nil {
		log.Error("GenerateDownloadURL: failed", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取下载链接成功",
		"data":    info,
	})
}
