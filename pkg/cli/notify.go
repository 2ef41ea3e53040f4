package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/telekom/regression-notifier/pkg/api"
	"github.com/telekom/regression-notifier/pkg/build"
	"github.com/telekom/regression-notifier/pkg/metrics"
	"github.com/telekom/regression-notifier/pkg/notifier"
	"github.com/telekom/regression-notifier/pkg/record"
	"github.com/telekom/regression-notifier/pkg/system"
)

type notifyOptions struct {
	buildDir     string
	previousDir  string
	metadataFile string
	reportsDir   string
	consoleLog   string
	metricsFile  string
	output       string
	failOnError  bool
}

func newNotifyCommand(rt *runtimeState) *cobra.Command {
	var opts notifyOptions

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Evaluate a finished build directory and mail the regression report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNotify(rt, opts)
		},
	}

	cmd.Flags().StringVar(&opts.buildDir, "build-dir", "", "Directory of the finished build")
	cmd.Flags().StringVar(&opts.previousDir, "previous-dir", "", "Directory of the previous build, if any")
	cmd.Flags().StringVar(&opts.metadataFile, "metadata-file", record.DefaultMetadataFile, "Build metadata file, relative to the build directory")
	cmd.Flags().StringVar(&opts.reportsDir, "reports-dir", record.DefaultReportsDir, "JUnit reports directory, relative to the build directory")
	cmd.Flags().StringVar(&opts.consoleLog, "console-log", record.DefaultConsoleLog, "Console log file, relative to the build directory")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write metrics to this file in the Prometheus text format")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&opts.failOnError, "fail-on-error", false, "Exit non-zero when the report could not be sent")
	_ = cmd.MarkFlagRequired("build-dir")

	return cmd
}

func runNotify(rt *runtimeState, opts notifyOptions) error {
	switch opts.output {
	case "", "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q", opts.output)
	}
	n, err := rt.newNotifier()
	if err != nil {
		return err
	}

	sink := system.NewSinkWriter(rt.sugar().Named("build"))
	defer sink.Flush()
	rec, err := record.LoadDir(opts.buildDir, record.DirOptions{
		MetadataFile: opts.metadataFile,
		ReportsDir:   opts.reportsDir,
		ConsoleLog:   opts.consoleLog,
		PreviousDir:  opts.previousDir,
		Sink:         sink,
	})
	if err != nil {
		return err
	}

	d := n.Evaluate(rec)

	if opts.metricsFile != "" {
		if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
	}
	if err := printDecision(rt.writer, opts.output, rec, d); err != nil {
		return err
	}
	if opts.failOnError && d.Outcome == notifier.Failed {
		return d.Err
	}
	return nil
}

func printDecision(w io.Writer, format string, rec build.Record, d notifier.Decision) error {
	resp := api.NewDecisionResponse("", d)
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(resp)
	case "yaml":
		data, err := yaml.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		_, _ = fmt.Fprint(w, string(data))
		return nil
	}

	_, _ = fmt.Fprintf(w, "%s: %s\n", build.DisplayName(rec), resp.Outcome)
	if resp.Reason != "" {
		_, _ = fmt.Fprintf(w, "  reason: %s\n", resp.Reason)
	}
	for _, r := range resp.Regressions {
		_, _ = fmt.Fprintf(w, "  regression: %s\n", r)
	}
	for _, r := range resp.Recipients {
		_, _ = fmt.Fprintf(w, "  recipient: %s\n", r)
	}
	if resp.Error != "" {
		_, _ = fmt.Fprintf(w, "  error: %s\n", resp.Error)
	}
	return nil
}
