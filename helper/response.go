package helper

import (
	"github.com/gin-gonic/gin"
)

const (
	ErrInvalidRequest   = "INVALID_REQUEST"
	ErrInvalidOperation = "INVALID_OPERATION"
	ErrPolicyDenied     = "POLICY_DENIED"
	ErrLowConfidence    = "LOW_CONFIDENCE"
	ErrProfileMissing   = "PROFILE_MISSING"
	ErrStorage          = "STORAGE_UNAVAILABLE"
	ErrUnauthorized     = "UNAUTHORIZED"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func SendSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func SendError(c *gin.Context, status int, err error, code string) {
	c.JSON(status, Response{
		Success: false,
		Message: err.Error(),
		Code:    code,
	})
}

// SendDenied is for gate refusals that carry structured detail (reason,
// remaining suspension, warnings). Refusals are never silent no-ops.
func SendDenied(c *gin.Context, status int, message string, code string, data interface{}) {
	c.JSON(status, Response{
		Success: false,
		Message: message,
		Code:    code,
		Data:    data,
	})
}
