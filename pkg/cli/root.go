package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/regression-notifier/pkg/config"
	"github.com/telekom/regression-notifier/pkg/notifier"
	"github.com/telekom/regression-notifier/pkg/system"
)

type Config struct {
	// ConfigPath is the config file; empty defers to the environment and
	// then to ./config.yaml.
	ConfigPath   string
	OutputWriter io.Writer
	// Sender replaces the SMTP sender built from the mail config.
	Sender notifier.MailSender
	// Logger replaces the logger built from --debug.
	Logger *zap.Logger
}

type runtimeState struct {
	configPath string
	debug      bool
	cfg        config.Config
	writer     io.Writer
	sender     notifier.MailSender
	log        *zap.Logger
}

func DefaultConfig() Config {
	return Config{OutputWriter: os.Stdout}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		writer:     cfg.OutputWriter,
		sender:     cfg.Sender,
		log:        cfg.Logger,
	}

	root := &cobra.Command{
		Use:           "regression-notifier",
		Short:         "Mail a report when a build regresses previously passing tests",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.log == nil {
				log, err := system.NewLogger(rt.debug)
				if err != nil {
					return err
				}
				rt.log = log
			}
			if cmd.Name() == "version" {
				return nil
			}
			c, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			rt.cfg = c
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath,
		"Path to config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug level logging")

	root.AddCommand(
		newNotifyCommand(rt),
		newServeCommand(rt),
		newConsumeCommand(rt),
		newVersionCommand(rt),
	)

	return root
}

func (rt *runtimeState) sugar() *zap.SugaredLogger {
	if rt.log == nil {
		return zap.NewNop().Sugar()
	}
	return rt.log.Sugar()
}
