package emergency

import (
	"errors"
	"fmt"
	"net/http"

	"emergency-service/helper"
	"emergency-service/internal/guard"
	"emergency-service/internal/profile"
	"emergency-service/internal/storage"

	"github.com/gin-gonic/gin"
)

type EmergencyHandler struct {
	emergencyService EmergencyService
}

func NewEmergencyHandler(emergencyService EmergencyService) *EmergencyHandler {
	return &EmergencyHandler{
		emergencyService: emergencyService,
	}
}

func (h *EmergencyHandler) Trigger(c *gin.Context) {

	var req TriggerEmergencyRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		helper.SendError(c, http.StatusBadRequest, err, helper.ErrInvalidRequest)
		return
	}

	result, err := h.emergencyService.Trigger(c, &req)
	if err != nil {
		h.sendTriggerError(c, err)
		return
	}

	if !result.Verified {
		helper.SendDenied(c, http.StatusAccepted, "emergency could not be verified", helper.ErrLowConfidence, result)
		return
	}

	helper.SendSuccess(c, http.StatusCreated, "emergency dispatched", result)
}

func (h *EmergencyHandler) sendTriggerError(c *gin.Context, err error) {

	var denied *guard.DeniedError
	if errors.As(err, &denied) {
		status := http.StatusTooManyRequests
		if denied.Reason == guard.DeniedSuspended {
			status = http.StatusForbidden
		}
		helper.SendDenied(c, status, denied.Error(), helper.ErrPolicyDenied, gin.H{
			"reason":          denied.Reason,
			"retry_after":     denied.RetryAfter.String(),
			"suspended_until": denied.SuspendedUntil,
		})
		return
	}

	if errors.Is(err, profile.ErrNotFound) {
		helper.SendError(c, http.StatusPreconditionFailed, err, helper.ErrProfileMissing)
		return
	}

	if errors.Is(err, storage.ErrUnavailable) {
		helper.SendError(c, http.StatusServiceUnavailable, err, helper.ErrStorage)
		return
	}

	helper.SendError(c, http.StatusBadRequest, err, helper.ErrInvalidRequest)
}

func (h *EmergencyHandler) ReportFalseAlarm(c *gin.Context) {

	var req FalseAlarmRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		helper.SendError(c, http.StatusBadRequest, err, helper.ErrInvalidRequest)
		return
	}

	result, err := h.emergencyService.ReportFalseAlarm(c, req.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			helper.SendError(c, http.StatusServiceUnavailable, err, helper.ErrStorage)
			return
		}
		helper.SendError(c, http.StatusBadRequest, err, helper.ErrInvalidRequest)
		return
	}

	helper.SendSuccess(c, http.StatusOK, "false alarm recorded", result)
}

func (h *EmergencyHandler) SaveProfile(c *gin.Context) {

	var req SaveProfileRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		helper.SendError(c, http.StatusBadRequest, err, helper.ErrInvalidRequest)
		return
	}

	if err := h.emergencyService.SaveProfile(c, &req); err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			helper.SendError(c, http.StatusServiceUnavailable, err, helper.ErrStorage)
			return
		}
		helper.SendError(c, http.StatusBadRequest, err, helper.ErrInvalidRequest)
		return
	}

	helper.SendSuccess(c, http.StatusOK, "profile cached", nil)
}

func (h *EmergencyHandler) GetProfile(c *gin.Context) {

	userID := c.Query("user_id")
	if userID == "" {
		helper.SendError(c, http.StatusBadRequest, fmt.Errorf("user_id is required"), helper.ErrInvalidRequest)
		return
	}

	p, err := h.emergencyService.GetProfile(c, userID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			helper.SendError(c, http.StatusNotFound, err, helper.ErrProfileMissing)
			return
		}
		helper.SendError(c, http.StatusInternalServerError, err, helper.ErrInvalidOperation)
		return
	}

	helper.SendSuccess(c, http.StatusOK, "success", p)
}

func (h *EmergencyHandler) QueueStatus(c *gin.Context) {

	userID := c.Query("user_id")
	if userID == "" {
		helper.SendError(c, http.StatusBadRequest, fmt.Errorf("user_id is required"), helper.ErrInvalidRequest)
		return
	}

	status, err := h.emergencyService.QueueStatus(c, userID)
	if err != nil {
		helper.SendError(c, http.StatusInternalServerError, err, helper.ErrInvalidOperation)
		return
	}

	helper.SendSuccess(c, http.StatusOK, "success", status)
}

func (h *EmergencyHandler) History(c *gin.Context) {

	userID := c.Query("user_id")
	if userID == "" {
		helper.SendError(c, http.StatusBadRequest, fmt.Errorf("user_id is required"), helper.ErrInvalidRequest)
		return
	}

	history, err := h.emergencyService.History(c, userID)
	if err != nil {
		helper.SendError(c, http.StatusInternalServerError, err, helper.ErrInvalidOperation)
		return
	}

	helper.SendSuccess(c, http.StatusOK, "success", history)
}

func (h *EmergencyHandler) Resume(c *gin.Context) {

	if err := h.emergencyService.Resume(c); err != nil {
		helper.SendError(c, http.StatusInternalServerError, err, helper.ErrInvalidOperation)
		return
	}

	helper.SendSuccess(c, http.StatusOK, "queue flush triggered", nil)
}
