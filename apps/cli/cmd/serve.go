package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/api"
	"github.com/abdul-hamid-achik/postbox/packages/export/metrics"
	"github.com/spf13/cobra"
)

var (
	serveAddrFlag      string
	serveBodyLimitFlag string
	serveOriginsFlag   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Long: `Serve the postbox JSON API. Every /api route requires a bearer token
signed with the configured JWT secret (see postbox token).

Examples:
  POSTBOX_JWT_SECRET=s3cret postbox serve
  postbox serve --addr :9090 --config postbox.yaml
  postbox serve --allow-origins https://app.example.com`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", getEnvString("POSTBOX_ADDR", ""), "Listen address, overrides the config file (env: POSTBOX_ADDR)")
	serveCmd.Flags().StringVar(&serveBodyLimitFlag, "body-limit", api.DefaultBodyLimit, "Largest accepted request body")
	serveCmd.Flags().StringVar(&serveOriginsFlag, "allow-origins", "", "Comma-separated CORS origins (default: any)")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	issuer, err := api.NewIssuer(a.cfg.JWTSecret)
	if err != nil {
		return configError(fmt.Errorf("jwtSecret: %w", err))
	}

	reg := metrics.NewRegistry()
	run := a.runner(metrics.NewPrometheusRecorder(reg))

	addr := a.cfg.Addr
	if serveAddrFlag != "" {
		addr = serveAddrFlag
	}
	opts := []api.Option{
		api.WithAddr(addr),
		api.WithLogger(a.log),
		api.WithMetrics(reg),
		api.WithBodyLimit(serveBodyLimitFlag),
	}
	if serveOriginsFlag != "" {
		opts = append(opts, api.WithAllowOrigins(strings.Split(serveOriginsFlag, ",")...))
	}
	srv := api.NewServer(a.store, run, issuer, opts...)

	ctx, stop := signalContext()
	defer stop()

	a.log.Info("serving", "addr", srv.Addr(), "version", version)
	return srv.StartWithContext(ctx)
}
