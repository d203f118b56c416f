package command

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-txscope/pkg/logx"
	"github.com/marcodd23/go-txscope/pkg/serverx/fibersrv"
	"github.com/marcodd23/go-txscope/pkg/shutdown"
	"github.com/spf13/cobra"
)

// shutdownTimeout - timeout for cleaning up resources before shutting down the server.
const shutdownTimeout = 500 * time.Millisecond

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pool statistics and the database health check",
	Long: `Serve the pool statistics on GET /stats and a database round trip
on GET /health. The server stops on SIGINT or SIGTERM, closing the pool.`,
	RunE: serve,
	Args: cobra.NoArgs,
}

func serve(_ *cobra.Command, _ []string) error {
	rootCtx := context.Background()

	cfg, err := loadConfiguration()
	if err != nil {
		return err
	}

	logx.SetupLogger(cfg)

	client, err := newClient(rootCtx, cfg)
	if err != nil {
		return err
	}

	serverManager := fibersrv.NewFiberServer(cfg)
	serverManager.Setup(rootCtx, func(app *fiber.App) {
		fibersrv.RegisterDatabaseRoutes(app, client)
	})

	serverManager.RunAsync()

	shutdown.WaitForShutdown(rootCtx, shutdownTimeout, func(timeoutCtx context.Context) {
		serverManager.Shutdown(timeoutCtx)
		client.End()
	})

	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
