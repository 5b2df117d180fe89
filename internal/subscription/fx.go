package subscription

import (
	"github.com/smallbiznis/givelane/internal/subscription/repository"
	"github.com/smallbiznis/givelane/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
