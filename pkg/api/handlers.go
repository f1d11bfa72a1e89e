package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ColombeNotify/pkg/model"
	"ColombeNotify/pkg/service"
	"ColombeNotify/pkg/store"
)

// Handlers API处理程序
type Handlers struct {
	manager *service.Manager
}

// NewHandlers 创建新的API处理程序
func NewHandlers(manager *service.Manager) *Handlers {
	return &Handlers{
		manager: manager,
	}
}

// HealthCheck 健康检查处理程序
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck 就绪检查处理程序
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	if !h.manager.Health().AllHealthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "degraded",
			"components": h.manager.Health().GetAllStatus(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// ListNotifications 获取通知列表处理程序
func (h *Handlers) ListNotifications(c *gin.Context) {
	filter := store.ListFilter{
		Category:   model.Category(c.Query("category")),
		Page:       c.Query("page"),
		UnreadOnly: c.Query("unread") == "true",
	}
	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit参数无效",
			})
			return
		}
		filter.Limit = limit
	}

	records := h.manager.Store().List(filter)
	c.JSON(http.StatusOK, gin.H{
		"data":  records,
		"count": len(records),
	})
}

// GetUnreadCount 获取未读数处理程序
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count": h.manager.Store().UnreadCount(),
	})
}

// GetUnreadCountByPage 获取各页面未读数处理程序
func (h *Handlers) GetUnreadCountByPage(c *gin.Context) {
	pages := []string{"grades", "presence-incidents", "homework", "communiques", "timetable", "dashboard"}
	counts := make(map[string]int64, len(pages))
	for _, page := range pages {
		counts[page] = h.manager.Store().UnreadCountByPage(page)
	}
	c.JSON(http.StatusOK, gin.H{
		"data": counts,
	})
}

// GetDailySummary 获取当日通知总结处理程序
func (h *Handlers) GetDailySummary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"summary": DailySummary(h.manager.Store()),
	})
}

// MarkRead 单条标记已读处理程序
func (h *Handlers) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if !h.manager.Store().MarkRead(id) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "通知不存在或已读",
		})
		return
	}

	// 已读状态变化后校正徽章
	h.manager.Dispatcher().UpdateBadge(h.manager.Store().UnreadCount())
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}

// MarkPageRequest 按页面标记已读请求
type MarkPageRequest struct {
	Page    string `json:"page" binding:"required"`
	ChildID string `json:"child_id"`
}

// MarkPageRead 按页面标记已读处理程序
func (h *Handlers) MarkPageRead(c *gin.Context) {
	var req MarkPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}

	marked := h.manager.HandleNotificationClick(model.ClickData{
		Page:    req.Page,
		ChildID: req.ChildID,
	})
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"marked": marked,
	})
}

// MarkAllRead 全部标记已读处理程序
func (h *Handlers) MarkAllRead(c *gin.Context) {
	h.manager.MarkAllRead()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}

// NotificationClicked 通知点击处理程序
func (h *Handlers) NotificationClicked(c *gin.Context) {
	var click model.ClickData
	if err := c.ShouldBindJSON(&click); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}

	marked := h.manager.HandleNotificationClick(click)
	page := click.Page
	if page == "" {
		page = model.PageForCategory(click.Category)
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"page":   page,
		"marked": marked,
	})
}

// HandleWakeup 推送唤醒处理程序
func (h *Handlers) HandleWakeup(c *gin.Context) {
	var payload model.WakeupPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}

	delivered := h.manager.HandleWakeup(payload)
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"delivered": delivered,
	})
}

// TriggerTest 测试通知处理程序
func (h *Handlers) TriggerTest(c *gin.Context) {
	delivered := h.manager.Test()
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"delivered": delivered,
	})
}

// GetStatus 运行状态处理程序
func (h *Handlers) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.manager.Status(),
	})
}

// TriggerCheck 手动触发检查处理程序
func (h *Handlers) TriggerCheck(c *gin.Context) {
	h.manager.TriggerCheck()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}
