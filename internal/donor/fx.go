package donor

import (
	"github.com/smallbiznis/givelane/internal/donor/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("donor.directory",
	fx.Provide(repository.Provide),
)
