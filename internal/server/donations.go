package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	donationdomain "github.com/smallbiznis/givelane/internal/donation/domain"
)

type createOrderBody struct {
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	CampaignID string `json:"campaign_id"`
	Provider   string `json:"provider"`
}

type createSubscriptionBody struct {
	Amount     int64  `json:"amount"`
	Frequency  string `json:"frequency"`
	Currency   string `json:"currency"`
	CampaignID string `json:"campaign_id"`
	Provider   string `json:"provider"`
}

func (s *Server) CreateDonationOrder(c *gin.Context) {
	donorID, ok := donorFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}
	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.donationSvc.CreateOrder(c.Request.Context(), donationdomain.CreateOrderRequest{
		DonorID:          donorID,
		Amount:           body.Amount,
		Currency:         strings.TrimSpace(body.Currency),
		CampaignID:       strings.TrimSpace(body.CampaignID),
		Provider:         strings.TrimSpace(body.Provider),
		IdempotencyToken: strings.TrimSpace(c.GetHeader(headerIdempotency)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(createdStatus(resp.Replayed), gin.H{"data": resp})
}

func (s *Server) CreateDonationSubscription(c *gin.Context) {
	donorID, ok := donorFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}
	var body createSubscriptionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.donationSvc.CreateSubscription(c.Request.Context(), donationdomain.CreateSubscriptionRequest{
		DonorID:          donorID,
		Amount:           body.Amount,
		Frequency:        strings.ToLower(strings.TrimSpace(body.Frequency)),
		Currency:         strings.TrimSpace(body.Currency),
		CampaignID:       strings.TrimSpace(body.CampaignID),
		Provider:         strings.TrimSpace(body.Provider),
		IdempotencyToken: strings.TrimSpace(c.GetHeader(headerIdempotency)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(createdStatus(resp.Replayed), gin.H{"data": resp})
}

func (s *Server) GetDonation(c *gin.Context) {
	principal, _ := principalFromContext(c)
	donation, err := s.donationSvc.Get(c.Request.Context(), donationdomain.GetRequest{
		DonationID: strings.TrimSpace(c.Param("id")),
		ActorID:    principal.Subject,
		IsAdmin:    principal.IsAdmin(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": donation})
}

// donorFromContext returns the donor id for donor principals. Admin tokens
// do not donate.
func donorFromContext(c *gin.Context) (string, bool) {
	donorID := strings.TrimSpace(c.GetString(contextDonorIDKey))
	return donorID, donorID != ""
}

func createdStatus(replayed bool) int {
	if replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}
