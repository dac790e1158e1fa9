package views

import (
	"errors"
	"fmt"

	"github.com/GrainArc/MopedMap/logging"
	"github.com/GrainArc/MopedMap/methods"
	"github.com/GrainArc/MopedMap/response"
	"github.com/GrainArc/MopedMap/services"
	"github.com/gin-gonic/gin"
)

// 路网要素代理查询

type AgolHandler struct {
	network *services.NetworkService
}

func NewAgolHandler(network *services.NetworkService) *AgolHandler {
	return &AgolHandler{network: network}
}

// Query 查询单个路网图层
// @Param layer path string true "ctn-lines 或 ctn-points"
// @Param bbox query string true "minX,minY,maxX,maxY"
func (h *AgolHandler) Query(c *gin.Context) {
	bounds, err := methods.ParseBounds(c.Query("bbox"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	layer := c.Param("layer")
	fc, err := h.network.Query(c.Request.Context(), layer, bounds)
	if errors.Is(err, services.ErrUnknownSourceLayer) {
		response.NotFound(c, fmt.Sprintf("unknown layer %s", layer))
		return
	}
	if err != nil {
		logging.ErrorContext(c.Request.Context(), "agol query failed", "layer", layer, "error", err)
		response.BadGateway(c, err.Error())
		return
	}
	c.JSON(200, fc)
}

// Network 同时查询线、点图层
func (h *AgolHandler) Network(c *gin.Context) {
	bounds, err := methods.ParseBounds(c.Query("bbox"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	all, err := h.network.QueryAll(c.Request.Context(), bounds)
	if err != nil {
		logging.ErrorContext(c.Request.Context(), "agol network query failed", "error", err)
		response.BadGateway(c, err.Error())
		return
	}
	c.JSON(200, all)
}
