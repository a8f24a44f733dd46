package handler

import (
	"net/http"
	"strconv"

	"medkb-go/internal/service"
	"medkb-go/pkg/log"
	"medkb-go/pkg/tasks"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理知识库运维相关的 API 请求。
type AdminHandler struct {
	reconcileService service.ReconcileService
	produce          service.ProduceFunc // 可为 nil
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(reconcileService service.ReconcileService, produce service.ProduceFunc) *AdminHandler {
	return &AdminHandler{reconcileService: reconcileService, produce: produce}
}

// Reconcile 触发一次全语料分类对账。
// async=true 时把任务投递到消息队列由后台消费者执行，否则同步
// 执行并返回修复计数。
func (h *AdminHandler) Reconcile(c *gin.Context) {
	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))

	if async && h.produce != nil {
		if err := h.produce(tasks.KbTask{Type: tasks.TypeReconcile}); err != nil {
			log.Error("Reconcile: 投递对账任务失败", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投递对账任务失败"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "对账任务已入队"})
		return
	}

	updated, err := h.reconcileService.ReconcileAll(c.Request.Context())
	if err != nil {
		log.Error("Reconcile: 对账失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "对账失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "对账完成",
		"data":    gin.H{"updated": updated},
	})
}
