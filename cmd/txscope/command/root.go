// Package command provides the txscope CLI commands.
//
//	./txscope serve [-c ./configs/property.yaml]   # pool stats and health server
//	./txscope probe [-c ./configs/property.yaml] [--workers 20] [--hold 200ms]
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/marcodd23/go-txscope/pkg/configx"
	"github.com/marcodd23/go-txscope/pkg/logx"
	"github.com/marcodd23/go-txscope/pkg/rds"
	"github.com/marcodd23/go-txscope/pkg/rds/hooks"
	"github.com/spf13/cobra"
)

const slowQueryThreshold = 200 * time.Millisecond

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "txscope",
	Short: "Transaction scopes over a pooled PostgreSQL connection",
	Long: `txscope runs statements on a bounded PostgreSQL connection pool,
inside nested transaction scopes propagated through the call chain.
The serve command exposes the pool occupancy and a database health check,
the probe command stresses the pool wait timeout with concurrent scopes.`,
	SilenceUsage: true,
}

// Execute runs the rootCmd which in turn parses CLI arguments and runs the selected command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&cfgPath, "config", "c", "./configs/property.yaml", "path of the yaml configuration file",
	)
}

// ServiceConfig - txscope configuration.
type ServiceConfig struct {
	configx.BaseConfig `mapstructure:",squash"`
}

func loadConfiguration() (*ServiceConfig, error) {
	var cfg ServiceConfig

	if err := configx.ReadConfiguration(cfgPath, &cfg); err != nil {
		return nil, fmt.Errorf("configx.ReadConfiguration(%q): %w", cfgPath, err)
	}

	if err := configx.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration %q: %w", cfgPath, err)
	}

	return &cfg, nil
}

// newClient opens the client described by cfg and installs the service query hooks.
func newClient(ctx context.Context, cfg *ServiceConfig) (*rds.Client, error) {
	client, err := rds.New(ctx, rds.OptionsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating rds client: %w", err)
	}

	client.BeforeQuery(hooks.Comment(cfg.GetServiceName()))
	client.AfterQuery(hooks.SlowQueryLogger(logx.GetLogger(), slowQueryThreshold))

	return client, nil
}
