package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/logx"
	"github.com/marcodd23/go-txscope/pkg/profiling"
	"github.com/marcodd23/go-txscope/pkg/rds"
	"github.com/marcodd23/go-txscope/pkg/shutdown"
	"github.com/spf13/cobra"
)

var (
	probeWorkers    int
	probeHold       time.Duration
	probeCPUProfile string
	probeMemProfile string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run concurrent transaction scopes against the pool",
	Long: `Run --workers concurrent transaction scopes, each holding its connection
for --hold inside a nested scope. With more workers than connection-limit
the extra scopes fail with a pool wait timeout once pool-wait-timeout expires.
The report is printed as JSON.`,
	RunE: probe,
	Args: cobra.NoArgs,
}

// ProbeReport - outcome of a probe run.
type ProbeReport struct {
	RunID     string        `json:"runId"`
	Workers   int           `json:"workers"`
	Committed int           `json:"committed"`
	TimedOut  int           `json:"timedOut"`
	Failed    int           `json:"failed"`
	Elapsed   string        `json:"elapsed"`
	Pool      dbx.PoolStats `json:"pool"`
}

func probe(cmd *cobra.Command, _ []string) error {
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
	defer client.End()

	if probeCPUProfile != "" {
		stop, err := profiling.StartCPUProfile(rootCtx, probeCPUProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	var report ProbeReport

	shutdown.RunTaskWithContextCancellationCheck(rootCtx, func(cancelCtx context.Context, terminateSignal chan struct{}) error {
		report = runProbe(cancelCtx, client, probeWorkers, probeHold)
		return nil
	})

	if probeMemProfile != "" {
		if err := profiling.WriteHeapProfile(probeMemProfile); err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// scopeRunner is the part of rds.Client a probe run needs.
type scopeRunner interface {
	BeginTransactionScope(ctx context.Context, work rds.Work) (any, error)
	Stats() dbx.PoolStats
}

func runProbe(ctx context.Context, client scopeRunner, workers int, hold time.Duration) ProbeReport {
	report := ProbeReport{RunID: uuid.NewString(), Workers: workers}
	start := time.Now()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			_, err := client.BeginTransactionScope(ctx, func(ctx context.Context, tx *rds.Transaction) (any, error) {
				return client.BeginTransactionScope(ctx, func(ctx context.Context, tx *rds.Transaction) (any, error) {
					return tx.Query(ctx, "SELECT pg_sleep($1::float8 / 1000), $2::text AS worker",
						hold.Milliseconds(), fmt.Sprintf("%s-%d", report.RunID, worker))
				})
			})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				report.Committed++
			case errorx.IsPoolWaitTimeout(err):
				report.TimedOut++
			default:
				report.Failed++
				if !errors.Is(err, context.Canceled) {
					logx.GetLogger().LogError(ctx, fmt.Sprintf("probe worker %d failed", worker), err)
				}
			}
		}(i)
	}

	wg.Wait()

	report.Elapsed = time.Since(start).String()
	report.Pool = client.Stats()

	return report
}

func init() {
	probeCmd.Flags().IntVar(&probeWorkers, "workers", 20, "number of concurrent transaction scopes")
	probeCmd.Flags().DurationVar(&probeHold, "hold", 200*time.Millisecond, "how long each scope holds its connection")
	probeCmd.Flags().StringVar(&probeCPUProfile, "cpu-profile", "", "write a CPU profile of the run to this file")
	probeCmd.Flags().StringVar(&probeMemProfile, "mem-profile", "", "write a heap profile after the run to this file")
	rootCmd.AddCommand(probeCmd)
}
