package capture_routers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	captureApi "github.com/rapidaai/capture/api/capture-api/api/capture"
	"github.com/rapidaai/capture/api/capture-api/config"
)

func CaptureApiRoute(Cfg *config.AppConfig, Engine *gin.Engine, api *captureApi.CaptureApi) {
	v1 := Engine.Group("/v1/capture")
	v1.GET("/connect", api.Connect)
	v1.GET("/status", api.Status)

	Engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": Cfg.Name,
			"version": Cfg.Version,
		})
	})
}
