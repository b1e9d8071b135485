package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(Register),
)

func Register(lc fx.Lifecycle, cfg Config, log *zap.Logger, sched *Scheduler) {
	if !cfg.Enabled {
		log.Info("scheduler disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sched.Start()
			return nil
		},
		OnStop: sched.Stop,
	})
}
