// Package router 提供 HTTP 路由配置
package router

import (
	"subtitle-history-api/internal/interfaces/http/handler"
	"subtitle-history-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由；写接口挂载 writeLimit
func RegisterV1Routes(v1 *gin.RouterGroup, subtitleHandler *handler.SubtitleHandler, writeLimit gin.HandlerFunc) {
	videos := v1.Group("/videos/:vid", middleware.SubtitleScope())
	{
		videos.GET("/languages", subtitleHandler.ListLanguages)

		lang := videos.Group("/languages/:lang")
		{
			// 读
			lang.GET("/tip", subtitleHandler.GetTip)
			lang.GET("/versions", subtitleHandler.ListVersions)
			lang.GET("/versions/:num", subtitleHandler.GetVersion)
			lang.GET("/writelock", subtitleHandler.GetWritelock)

			// 写
			write := lang.Group("", writeLimit, middleware.Audit())
			write.POST("/versions", subtitleHandler.AddVersion)
			write.POST("/rollback", subtitleHandler.Rollback)
			write.POST("/writelock", subtitleHandler.AcquireWritelock)
			write.DELETE("/writelock", subtitleHandler.ReleaseWritelock)
			write.POST("/versions/:num/publish", subtitleHandler.Publish)
			write.POST("/versions/:num/unpublish", subtitleHandler.Unpublish)
			write.PUT("/completion", subtitleHandler.SetCompletion)
			write.PATCH("", subtitleHandler.ChangeLanguageCode)
			write.DELETE("", subtitleHandler.Nuke)
		}
	}
}
