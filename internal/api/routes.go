package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/suggest", handler.SuggestAddresses)
		api.GET("/years", handler.GetAvailableYears)
		api.POST("/estimate", handler.CreateEstimate)
		api.GET("/pois", handler.GetNearbyPOIs)

		admin := api.Group("/admin", handler.requireAdmin)
		{
			admin.GET("/leads", handler.GetLeads)
			admin.GET("/leads/export", handler.ExportLeads)
			admin.DELETE("/leads/:position", handler.DeleteLead)
			admin.DELETE("/leads", handler.ResetLeads)
		}
	}
}
