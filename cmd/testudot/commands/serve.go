package commands

import (
	"fmt"
	"net"
	"strconv"
	"testudot/internal/components/telemetry"
	"testudot/internal/server"
	"testudot/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to listen on, defaults to the configured host")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on, defaults to the configured port")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the http api for subscriptions and triggering monitoring.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		host := cfg.Server.Host
		if serveHost != "" {
			host = serveHost
		}
		port := cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}
		if cfg.Server.ApiKey == "" {
			fmt.Println(warnStyle.Render("no api key configured, the api is open to anyone who can reach it"))
		}

		telemetry.InstrumentPerfStats(ctx)

		srv := server.NewServer(app.Monitor, app.Directory, cfg.Server.ApiKey, tel)
		return serviceutil.StartHttpServer(ctx, net.JoinHostPort(host, strconv.Itoa(port)), srv.Handler())
	},
}
