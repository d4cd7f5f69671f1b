package public

import (
	"errors"

	"github.com/waimai-next/internal/http/response"
	"github.com/waimai-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListOpenAssignments 骑手查看可抢的配送任务
func (h *Handler) ListOpenAssignments(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	views, err := h.DispatchService.ListOpenAssignments(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal_error", err)
		return
	}
	response.Success(c, views)
}

// AcceptAssignment 骑手抢单
func (h *Handler) AcceptAssignment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	assignment, err := h.DispatchService.AcceptAssignment(c.Request.Context(), uid, assignmentID)
	if err != nil {
		respondWithMappedError(c, err, assignmentErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, assignment)
}

// GetCurrentAssignment 骑手当前配送任务
func (h *Handler) GetCurrentAssignment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	view, err := h.DispatchService.CurrentAssignment(uid)
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			respondError(c, response.CodeNotFound, "error.assignment_not_found", nil)
			return
		}
		respondWithMappedError(c, err, assignmentErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, view)
}
