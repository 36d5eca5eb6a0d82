package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	settlementdomain "github.com/netbill/netbill/internal/settlement/domain"
)

func (s *Server) RecordPayment(c *gin.Context) {
	var req settlementdomain.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	payment, err := s.settlementSvc.RecordPaymentAttempt(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) MarkPaymentProcessing(c *gin.Context) {
	payment, err := s.settlementSvc.MarkProcessing(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

type completePaymentRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (s *Server) MarkPaymentCompleted(c *gin.Context) {
	var req completePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	payment, err := s.settlementSvc.MarkCompleted(c.Request.Context(), c.Param("id"), req.TransactionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

type failPaymentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) MarkPaymentFailed(c *gin.Context) {
	var req failPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	payment, err := s.settlementSvc.MarkFailed(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

// ListStalePayments reports payments stuck in processing. They are
// surfaced for manual resolution, never auto-failed.
func (s *Server) ListStalePayments(c *gin.Context) {
	var olderThan time.Duration
	if raw := c.Query("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("older_than", "invalid_older_than", "invalid older_than duration"))
			return
		}
		olderThan = parsed
	}

	payments, err := s.settlementSvc.ListStalePayments(c.Request.Context(), olderThan)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

type requestRefundRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

func (s *Server) RequestRefund(c *gin.Context) {
	var req requestRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	refund, err := s.settlementSvc.RequestRefund(c.Request.Context(), c.Param("id"), req.AmountCents, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refund})
}

func (s *Server) ApproveRefund(c *gin.Context) {
	refund, err := s.settlementSvc.ApproveRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refund})
}

func (s *Server) RejectRefund(c *gin.Context) {
	refund, err := s.settlementSvc.RejectRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refund})
}

func (s *Server) CompleteRefund(c *gin.Context) {
	refund, err := s.settlementSvc.CompleteRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refund})
}

type failRefundRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) FailRefund(c *gin.Context) {
	var req failRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	refund, err := s.settlementSvc.FailRefund(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refund})
}
