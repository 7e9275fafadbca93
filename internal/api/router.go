package api

import (
	"emergency-service/internal/emergency"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, emergencyHandler *emergency.EmergencyHandler) {
	emergency.RegisterRoutes(r, emergencyHandler)
}
