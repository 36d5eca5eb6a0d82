// Package server exposes the billing engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netbill/netbill/internal/billingevent"
	"github.com/netbill/netbill/internal/clock"
	"github.com/netbill/netbill/internal/config"
	"github.com/netbill/netbill/internal/invoice"
	invoicedomain "github.com/netbill/netbill/internal/invoice/domain"
	obsmetrics "github.com/netbill/netbill/internal/observability/metrics"
	"github.com/netbill/netbill/internal/plan"
	plandomain "github.com/netbill/netbill/internal/plan/domain"
	"github.com/netbill/netbill/internal/pricing"
	pricingservice "github.com/netbill/netbill/internal/pricing/service"
	"github.com/netbill/netbill/internal/settlement"
	settlementdomain "github.com/netbill/netbill/internal/settlement/domain"
	"github.com/netbill/netbill/internal/usage"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	obsmetrics.Module,
	fx.Provide(NewEngine),
	billingevent.Module,
	usage.Module,
	plan.Module,
	pricing.Module,
	invoice.Module,
	settlement.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	clock         clock.Clock
	usageSvc      usagedomain.Service
	planSvc       plandomain.Service
	invoiceSvc    invoicedomain.Service
	settlementSvc settlementdomain.Service
	taxSvc        *pricingservice.Resolver
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Clock         clock.Clock
	UsageSvc      usagedomain.Service
	PlanSvc       plandomain.Service
	InvoiceSvc    invoicedomain.Service
	SettlementSvc settlementdomain.Service
	TaxSvc        *pricingservice.Resolver
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		clock:         p.Clock,
		usageSvc:      p.UsageSvc,
		planSvc:       p.PlanSvc,
		invoiceSvc:    p.InvoiceSvc,
		settlementSvc: p.SettlementSvc,
		taxSvc:        p.TaxSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/usage/events", s.RecordUsage)
	v1.GET("/usage/:user_id/aggregate", s.AggregateUsage)

	v1.POST("/plans", s.CreatePlan)
	v1.GET("/plans/:id", s.GetPlan)

	v1.POST("/tax-definitions", s.CreateTaxDefinition)
	v1.GET("/tax-definitions/active", s.GetActiveTaxDefinition)

	v1.POST("/invoices", s.GenerateInvoice)
	v1.GET("/invoices", s.ListInvoices)
	v1.GET("/invoices/:id", s.GetInvoice)
	v1.POST("/invoices/:id/issue", s.IssueInvoice)
	v1.POST("/invoices/:id/void", s.VoidInvoice)
	v1.POST("/invoices/overdue/sweep", s.SweepOverdueInvoices)

	v1.POST("/payments", s.RecordPayment)
	v1.GET("/payments/stale", s.ListStalePayments)
	v1.POST("/payments/:id/process", s.MarkPaymentProcessing)
	v1.POST("/payments/:id/complete", s.MarkPaymentCompleted)
	v1.POST("/payments/:id/fail", s.MarkPaymentFailed)
	v1.POST("/payments/:id/refunds", s.RequestRefund)

	v1.POST("/refunds/:id/approve", s.ApproveRefund)
	v1.POST("/refunds/:id/reject", s.RejectRefund)
	v1.POST("/refunds/:id/complete", s.CompleteRefund)
	v1.POST("/refunds/:id/fail", s.FailRefund)
}
