package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/regression-notifier/pkg/events"
)

func newConsumeCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume build events from Kafka and mail regression reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.cfg.ValidateKafka(); err != nil {
				return fmt.Errorf("invalid kafka configuration: %w", err)
			}
			n, err := rt.newNotifier()
			if err != nil {
				return err
			}
			reader, err := events.NewReader(rt.cfg.Kafka, rt.sugar())
			if err != nil {
				return err
			}

			consumer := events.NewConsumer(reader, n, rt.cfg.Kafka.ConsoleLogRoot, rt.sugar())
			defer func() {
				if err := consumer.Close(); err != nil {
					rt.sugar().Warnw("Failed to close Kafka reader", "error", err)
				}
			}()
			return consumer.Run(cmd.Context())
		},
	}
}
