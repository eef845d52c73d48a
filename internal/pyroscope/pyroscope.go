package pyroscope

import (
	"context"

	"github.com/grafana/pyroscope-go"
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/logger"
	"go.uber.org/fx"
)

// Service runs the continuous profiler when enabled and labels profiled work
type Service struct {
	cfg      *config.Configuration
	logger   *logger.Logger
	profiler *pyroscope.Profiler
}

// Module provides fx options for Pyroscope
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewPyroscopeService),
		fx.Invoke(RegisterHooks),
	)
}

// RegisterHooks starts the profiler with the application and stops it on shutdown
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.Start()
		},
		OnStop: func(ctx context.Context) error {
			return svc.Stop()
		},
	})
}

// NewPyroscopeService creates a new Pyroscope service
func NewPyroscopeService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins profiling. It is a no-op when profiling is disabled.
func (s *Service) Start() error {
	if !s.IsEnabled() {
		s.logger.Info("pyroscope profiling is disabled")
		return nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   s.cfg.Pyroscope.ApplicationName,
		ServerAddress:     s.cfg.Pyroscope.ServerAddress,
		BasicAuthUser:     s.cfg.Pyroscope.BasicAuthUser,
		BasicAuthPassword: s.cfg.Pyroscope.BasicAuthPass,
		Tags:              map[string]string{"mode": string(s.cfg.Deployment.Mode)},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Logger: s,
	})
	if err != nil {
		s.logger.Errorw("failed to start pyroscope", "error", err)
		return err
	}

	s.profiler = profiler
	s.logger.Infow("pyroscope profiling started",
		"application_name", s.cfg.Pyroscope.ApplicationName,
		"server_address", s.cfg.Pyroscope.ServerAddress,
	)
	return nil
}

// Stop flushes pending profiles
func (s *Service) Stop() error {
	if s.profiler == nil {
		return nil
	}
	s.logger.Info("stopping pyroscope profiling")
	return s.profiler.Stop()
}

// IsEnabled returns whether Pyroscope profiling is enabled
func (s *Service) IsEnabled() bool {
	return s != nil && s.cfg.Pyroscope.Enabled
}

// TagWrapper runs fn with profiling labels such as the route or the consumer name
func (s *Service) TagWrapper(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	if !s.IsEnabled() {
		fn(ctx)
		return
	}

	pairs := make([]string, 0, len(labels)*2)
	for key, value := range labels {
		pairs = append(pairs, key, value)
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// Debugf drops the profiler's debug chatter
func (s *Service) Debugf(format string, args ...interface{}) {}

func (s *Service) Infof(format string, args ...interface{}) {
	s.logger.Infof("[pyroscope] "+format, args...)
}

func (s *Service) Errorf(format string, args ...interface{}) {
	s.logger.Errorf("[pyroscope] "+format, args...)
}
