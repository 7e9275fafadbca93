package emergency

import (
	"emergency-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, handler *EmergencyHandler) {
	emergencyGroup := r.Group("api/v1/emergency", middleware.Secured())
	{
		emergencyGroup.POST("/trigger", handler.Trigger)
		emergencyGroup.POST("/false-alarm", handler.ReportFalseAlarm)
		emergencyGroup.PUT("/profile", handler.SaveProfile)
		emergencyGroup.GET("/profile", handler.GetProfile)
		emergencyGroup.GET("/queue", handler.QueueStatus)
		emergencyGroup.GET("/history", handler.History)
		emergencyGroup.POST("/resume", handler.Resume)
	}
}
