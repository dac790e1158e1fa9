package routers

import (
	"github.com/GrainArc/MopedMap/logging"
	"github.com/GrainArc/MopedMap/views"
	"github.com/gin-gonic/gin"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Agol      *views.AgolHandler
	Component *views.ComponentHandler
	Session   *views.SessionHandler
}

// SetupRouter 创建 gin 引擎并注册全部路由
func SetupRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	MopedRouters(r, h)
	return r
}

func MopedRouters(r *gin.Engine, h Handlers) {
	agolRouter := r.Group("/agol")
	{
		agolRouter.GET("/network", h.Agol.Network)
		agolRouter.GET("/:layer/query", h.Agol.Query)
	}

	r.GET("/component-types", h.Component.ComponentTypes)

	projectRouter := r.Group("/projects/:id")
	{
		projectRouter.GET("/components", h.Component.ListComponents)
		projectRouter.GET("/components/geojson", h.Component.ProjectGeoJSON)
		projectRouter.GET("/components/:cid", h.Component.GetComponent)
		projectRouter.DELETE("/components/:cid", h.Component.DeleteComponent)
		projectRouter.GET("/session", h.Session.Session)
	}
}
