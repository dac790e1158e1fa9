package views

import (
	"errors"
	"strconv"

	"github.com/GrainArc/MopedMap/logging"
	"github.com/GrainArc/MopedMap/response"
	"github.com/GrainArc/MopedMap/services"
	"github.com/gin-gonic/gin"
)

// DeleteListener 组件被 HTTP 接口删除后的通知，在线会话据此同步
type DeleteListener interface {
	ComponentDeleted(projectID uint, id string)
}

type ComponentHandler struct {
	components *services.ComponentService
	catalog    *services.ComponentCatalog
	listener   DeleteListener
}

// NewComponentHandler listener 可以为 nil
func NewComponentHandler(components *services.ComponentService, catalog *services.ComponentCatalog, listener DeleteListener) *ComponentHandler {
	return &ComponentHandler{components: components, catalog: catalog, listener: listener}
}

func projectID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "无效的项目ID")
		return 0, false
	}
	return uint(id), true
}

// ComponentTypes 组件类型检索
// @Param q query string false "关键字"
// @Param limit query int false "最大条数"
func (h *ComponentHandler) ComponentTypes(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		response.BadRequest(c, "无效的limit参数")
		return
	}
	response.Success(c, h.catalog.Search(c.Query("q"), limit))
}

// ListComponents 项目组件列表
func (h *ComponentHandler) ListComponents(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	list, err := h.components.ListComponents(c.Request.Context(), pid)
	if err != nil {
		logging.ErrorContext(c.Request.Context(), "list components failed", "project", pid, "error", err)
		response.InternalError(c, "获取列表失败")
		return
	}
	response.Success(c, list)
}

// GetComponent 单个组件
func (h *ComponentHandler) GetComponent(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	comp, err := h.components.GetComponent(c.Request.Context(), pid, c.Param("cid"))
	if errors.Is(err, services.ErrUnknownComponent) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, comp)
}

// DeleteComponent 删除组件
func (h *ComponentHandler) DeleteComponent(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	cid := c.Param("cid")
	err := h.components.DeleteComponent(c.Request.Context(), pid, cid)
	if errors.Is(err, services.ErrUnknownComponent) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if h.listener != nil {
		h.listener.ComponentDeleted(pid, cid)
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ProjectGeoJSON 项目全部组件要素
func (h *ComponentHandler) ProjectGeoJSON(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	fc, err := h.components.ProjectFeatures(c.Request.Context(), pid)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	c.JSON(200, fc)
}
