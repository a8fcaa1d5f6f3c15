package feedback

import (
	"github.com/stokvelhq/patron/internal/feedback/repository"
	"github.com/stokvelhq/patron/internal/feedback/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feedback.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
