package campaign

import (
	"github.com/smallbiznis/givelane/internal/campaign/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.aggregate",
	fx.Provide(repository.Provide),
)
