package cli

import (
	"github.com/spf13/cobra"

	"github.com/telekom/regression-notifier/pkg/api"
	"github.com/telekom/regression-notifier/pkg/config"
	"github.com/telekom/regression-notifier/pkg/ratelimit"
)

func newServeCommand(rt *runtimeState) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept build events over HTTP and mail regression reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := rt.newNotifier()
			if err != nil {
				return err
			}
			cfg := rt.cfg.Server
			if listen != "" {
				cfg.ListenAddress = listen
			}

			limiter := newLimiter(cfg.RateLimit)
			if limiter != nil {
				defer limiter.Stop()
			}

			server := api.NewServer(rt.log, cfg, rt.debug)
			if err := server.RegisterAll([]api.APIController{
				api.NewBuildController(n, api.BuildOptions{
					Limiter:        limiter,
					ConsoleLogRoot: cfg.ConsoleLogRoot,
				}, rt.sugar()),
			}); err != nil {
				return err
			}
			return server.Listen(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address, overrides server.listenAddress")

	return cmd
}

// newLimiter maps server.rateLimit onto the limiter. Zero values keep the
// defaults, a negative rate disables that limit, and nil is returned when
// both limits are disabled.
func newLimiter(cfg config.RateLimit) *ratelimit.Limiter {
	if cfg.Rate < 0 && cfg.JobRate < 0 {
		return nil
	}
	rl := ratelimit.DefaultConfig()
	switch {
	case cfg.Rate < 0:
		rl.Rate = 0
	case cfg.Rate > 0:
		rl.Rate = cfg.Rate
	}
	if cfg.Burst > 0 {
		rl.Burst = cfg.Burst
	}
	switch {
	case cfg.JobRate < 0:
		rl.JobRate = 0
	case cfg.JobRate > 0:
		rl.JobRate = cfg.JobRate
	}
	if cfg.JobBurst > 0 {
		rl.JobBurst = cfg.JobBurst
	}
	return ratelimit.New(rl)
}
