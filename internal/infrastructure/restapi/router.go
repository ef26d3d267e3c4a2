package restapi

import (
	"github.com/gin-gonic/gin"
)

// RegisterWalletRoutes attaches the wallet intent routes to the router.
func RegisterWalletRoutes(router *gin.Engine, handler *WalletHandler) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/session", handler.GetSessionHandler)
		v1.POST("/session/connect", handler.ConnectHandler)
		v1.POST("/session/disconnect", handler.DisconnectHandler)
		v1.POST("/session/asset", handler.SelectAssetHandler)

		v1.GET("/assets", handler.GetAssetsHandler)

		v1.POST("/transfers", handler.SubmitTransferHandler)
		v1.POST("/transfers/reset", handler.ResetTransferHandler)
		v1.GET("/transfers/current", handler.GetTransferHandler)

		v1.GET("/history", handler.GetHistoryHandler)
	}
}
