package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/harvestprice/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string // json or console
	Debug       bool

	SamplingInitial     int
	SamplingThereafter  int
	SamplingWindow      time.Duration
	IncludeCaller       bool
	IncludeStackOnError bool
}

type sampling struct {
	window     time.Duration
	initial    int
	thereafter int
}

func (c Config) sampling() sampling {
	s := sampling{window: c.SamplingWindow, initial: c.SamplingInitial, thereafter: c.SamplingThereafter}
	if s.window <= 0 {
		s.window = time.Second
	}
	if s.initial <= 0 {
		s.initial = 100
	}
	if s.thereafter <= 0 {
		s.thereafter = 100
	}
	return s
}

// New builds the process logger, installs it as the zap global and flushes it
// when the fx app stops.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	zapCfg, err := productionConfig(cfg)
	if err != nil {
		return nil, err
	}

	base, err := zapCfg.Build(buildOptions(cfg)...)
	if err != nil {
		return nil, err
	}

	log := base.With(serviceFields(cfg)...)
	zap.ReplaceGlobals(log)

	if lc != nil {
		lc.Append(fx.StopHook(func() {
			_ = log.Sync()
		}))
	}
	return log, nil
}

func productionConfig(cfg Config) (zap.Config, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Encoding = "json"
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		zapCfg.Encoding = "console"
	}
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	// zap's own sampler is replaced by the configurable one in buildOptions
	zapCfg.Sampling = nil

	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		return zap.Config{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zapCfg, nil
}

func buildOptions(cfg Config) []zap.Option {
	var opts []zap.Option
	if cfg.IncludeCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.IncludeStackOnError {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	s := cfg.sampling()
	opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(core, s.window, s.initial, s.thereafter)
	}))
	return opts
}

func serviceFields(cfg Config) []zap.Field {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "harvestprice"
	}
	return []zap.Field{
		zap.String("service", name),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	}
}

// WithContext attaches the request id, the scheduler job run and the active
// span to base.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	var fields []zap.Field
	if id := obscontext.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if job, runID := obscontext.JobRunFromContext(ctx); job != "" {
		fields = append(fields, zap.String("job", job), zap.String("run_id", runID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
