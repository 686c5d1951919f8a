package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/webstart-packager/internal/config"
	"github.com/oshokin/webstart-packager/internal/service/bundler"
	"github.com/oshokin/webstart-packager/internal/version"
)

var (
	// options collects flag values for the bundler.
	options bundler.Options

	// rootCmd builds the bundle described by the configuration file.
	rootCmd = &cobra.Command{
		Use:   "webstart-packager",
		Short: "Stage, pack, sign and archive a Java Web Start bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cmd.SilenceUsage = true

			_, err := bundler.Run(ctx, &options)

			return err
		},
	}
)

// Execute runs the webstart-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bindFlags registers the bundler flags on flags.
func bindFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&options.WorkDir, "work-dir", "", "staging directory, overrides work_dir")
	flags.StringVar(&options.OutputDir, "output-dir", "", "archive directory, overrides output_dir")
	flags.StringVar(&options.ResolvedFile, "resolved", "", "resolved artifacts manifest, overrides resolved_file")
	flags.BoolVarP(&options.Verbose, "verbose", "v", false, "log debug details")
	flags.StringVar(&options.LogLevel, "log-level", "", "log level: debug, info, warn or error")
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	bindFlags(rootCmd.Flags())
}
