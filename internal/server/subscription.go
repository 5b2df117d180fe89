package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
)

type updateSubscriptionBody struct {
	Status string `json:"status"`
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	principal, _ := principalFromContext(c)
	resp, err := s.subscriptionSvc.Get(c.Request.Context(), subscriptiondomain.GetRequest{
		SubscriptionID: strings.TrimSpace(c.Param("id")),
		ActorID:        principal.Subject,
		IsAdmin:        principal.IsAdmin(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateSubscriptionStatus(c *gin.Context) {
	var body updateSubscriptionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	status := strings.TrimSpace(body.Status)
	if status == "" {
		AbortWithError(c, newValidationError("status", "required", "status is required"))
		return
	}

	principal, _ := principalFromContext(c)
	resp, err := s.subscriptionSvc.ChangeStatus(c.Request.Context(), subscriptiondomain.ChangeStatusRequest{
		SubscriptionID: strings.TrimSpace(c.Param("id")),
		Status:         status,
		ActorID:        principal.Subject,
		IsAdmin:        principal.IsAdmin(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
