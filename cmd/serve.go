package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alde/epaper-relay/internal/server"
	"github.com/alde/epaper-relay/pkg/kavita"
	"github.com/alde/epaper-relay/pkg/source"
)

var (
	serveFlags displayFlags
	serveHost  string
	servePort  int
	kavitaURL  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Kavita chapters as e-paper frames over HTTP",
	Long: `Start the HTTP relay. Settings come from the environment (KAVITA_BASE_URL,
KAVITA_API_KEY, DISPLAY_PROFILE, FONT_SIZE, SERVER_PORT, ...) and can be
overridden with flags.

Examples:
  epaper-relay serve
  epaper-relay serve --profile waveshare-7.5 --port 8080
  KAVITA_API_KEY=... epaper-relay serve --kavita http://nas:5000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags.register(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from SERVER_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from SERVER_PORT)")
	serveCmd.Flags().StringVar(&kavitaURL, "kavita", "", "Kavita base URL (default from KAVITA_BASE_URL)")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd, &serveFlags)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		settings.ServerHost = serveHost
	}
	if cmd.Flags().Changed("port") {
		settings.ServerPort = servePort
	}
	if cmd.Flags().Changed("kavita") {
		settings.KavitaBaseURL = kavitaURL
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(settings)
	if err != nil {
		return err
	}

	kavitaCfg := settings.KavitaConfig()
	kavitaCfg.Logger = logger
	client, err := kavita.New(kavitaCfg)
	if err != nil {
		return err
	}

	fetcher := source.NewKavitaSource(client, source.NewTextCleaner(settings.CleanOptions()), logger)
	pipeline, err := newPipeline(settings, fetcher, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Startup continues without a session; requests authenticate lazily (Kavita is often the slower one to boot).
	if err := client.Authenticate(ctx); err != nil {
		logger.Error("failed to authenticate with Kavita", "url", settings.KavitaBaseURL, "error", err)
	}

	srv := server.New(settings, rootCmd.Version, client, pipeline, logger)
	return srv.ListenAndServe(ctx)
}
