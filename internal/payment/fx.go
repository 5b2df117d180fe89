package payment

import (
	"github.com/smallbiznis/givelane/internal/config"
	obsmetrics "github.com/smallbiznis/givelane/internal/observability/metrics"
	"github.com/smallbiznis/givelane/internal/payment/adapters"
	"github.com/smallbiznis/givelane/internal/payment/adapters/razorpay"
	"github.com/smallbiznis/givelane/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	"github.com/smallbiznis/givelane/internal/payment/repository"
	paymentservice "github.com/smallbiznis/givelane/internal/payment/service"
	"github.com/smallbiznis/givelane/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type registryParams struct {
	fx.In

	Cfg        config.Config
	Gateways   *config.GatewayConfigHolder
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func newRegistry(p registryParams) *adapters.Registry {
	return adapters.NewRegistry(
		p.Gateways,
		[]paymentdomain.AdapterFactory{
			razorpay.NewFactory(),
			stripe.NewFactory(),
		},
		adapters.WithTimeout(p.Cfg.GatewayTimeout),
		adapters.WithMetrics(p.ObsMetrics),
		adapters.WithLogger(p.Log),
	)
}

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(newRegistry),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
