package ingest

import (
	"context"

	"github.com/smallbiznis/harvestprice/internal/config"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ingest",
	fx.Invoke(Register),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	History   historydomain.Service
}

// Register starts the sales consumer when Kafka brokers are configured.
func Register(p Params) {
	if len(p.Config.Kafka.Brokers) == 0 {
		p.Log.Info("sales ingestion disabled, no kafka brokers configured")
		return
	}

	consumer := NewConsumer(p.Log, newKafkaReader(p.Config.Kafka), NewHandler(p.Log, p.History))
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Log.Info("sales ingestion started",
				zap.Strings("brokers", p.Config.Kafka.Brokers),
				zap.String("topic", p.Config.Kafka.SalesTopic),
				zap.String("group_id", p.Config.Kafka.GroupID),
			)
			consumer.Start()
			return nil
		},
		OnStop: consumer.Stop,
	})
}
