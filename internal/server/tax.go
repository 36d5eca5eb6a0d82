package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	pricingdomain "github.com/netbill/netbill/internal/pricing/domain"
)

func (s *Server) CreateTaxDefinition(c *gin.Context) {
	var req pricingdomain.TaxDefinition
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	created, err := s.taxSvc.CreateTaxDefinition(c.Request.Context(), &req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": created})
}

func (s *Server) GetActiveTaxDefinition(c *gin.Context) {
	def, err := s.taxSvc.ActiveTaxDefinition(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": def})
}
