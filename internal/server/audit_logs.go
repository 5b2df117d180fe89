package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type listAuditLogsQuery struct {
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	targetType := strings.TrimSpace(query.TargetType)
	if targetType == "" {
		AbortWithError(c, newValidationError("target_type", "required", "target_type is required"))
		return
	}
	targetID := strings.TrimSpace(query.TargetID)
	if targetID == "" {
		AbortWithError(c, newValidationError("target_id", "required", "target_id is required"))
		return
	}

	logs, err := s.auditSvc.ListByTarget(c.Request.Context(), targetType, targetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}
