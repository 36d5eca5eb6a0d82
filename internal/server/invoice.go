package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/netbill/netbill/internal/invoice/domain"
	pricingdomain "github.com/netbill/netbill/internal/pricing/domain"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
)

type generateInvoiceRequest struct {
	UserID    string                   `json:"user_id"`
	PlanID    string                   `json:"plan_id"`
	Period    usagedomain.Period       `json:"period"`
	Discounts []pricingdomain.Discount `json:"discounts"`
	TaxRate   *float64                 `json:"tax_rate"`
}

// GenerateInvoice resolves the plan and the aggregated usage for the
// period, then generates (or returns the existing) invoice for the
// (user, period) key.
func (s *Server) GenerateInvoice(c *gin.Context) {
	var req generateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user", "invalid user id"))
		return
	}

	billingPlan, err := s.planSvc.Get(c.Request.Context(), req.PlanID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	usage, err := s.usageSvc.AggregateForPeriod(c.Request.Context(), userID, req.Period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invoiceSvc.GenerateInvoice(c.Request.Context(), invoicedomain.GenerateRequest{
		UserID:    userID,
		Period:    req.Period,
		Plan:      *billingPlan,
		Usage:     usage,
		Discounts: req.Discounts,
		TaxRate:   req.TaxRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	invoices, pageInfo, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices, "page_info": pageInfo})
}

func (s *Server) GetInvoice(c *gin.Context) {
	inv, err := s.invoiceSvc.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (s *Server) IssueInvoice(c *gin.Context) {
	inv, err := s.invoiceSvc.IssueInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (s *Server) VoidInvoice(c *gin.Context) {
	inv, err := s.invoiceSvc.VoidInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": inv})
}

// SweepOverdueInvoices flags issued and partially paid invoices past due.
// as_of defaults to now; an explicit value supports replaying a missed
// sweep.
func (s *Server) SweepOverdueInvoices(c *gin.Context) {
	asOf := s.clock.Now()
	if raw := strings.TrimSpace(c.Query("as_of")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of timestamp"))
			return
		}
		asOf = parsed
	}

	flagged, err := s.invoiceSvc.MarkOverdueInvoices(c.Request.Context(), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"flagged": flagged}})
}
