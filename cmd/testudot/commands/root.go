package commands

import (
	"context"
	"fmt"
	"os"
	"testudot/internal/application"
	"testudot/internal/components/telemetry"
	"testudot/internal/config"

	"github.com/spf13/cobra"
)

const serviceName = "testudot"

var (
	configPath string

	cfg config.Config
	tel telemetry.API = telemetry.SlogAPI{}

	otelShutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:           "testudot",
	Short:         "testudot watches Testudo course sections and emails subscribers when they change.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("config") {
			configPath = config.Discover()
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		telemetry.InitSlog(cfg.Telemetry.Debug)

		otel, err := telemetry.Setup(cmd.Context(), serviceName, cfg.Telemetry)
		if err != nil {
			return err
		}
		otelShutdown = otel.Shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if otelShutdown == nil {
			return nil
		}
		return otelShutdown(context.WithoutCancel(cmd.Context()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the config file, by default the nearest one upwards from the working directory")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func openApp(ctx context.Context, options ...application.Option) (*application.App, error) {
	return application.New(ctx, cfg, tel, options...)
}
