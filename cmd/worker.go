/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/revenac/apiserver/config"
	"github.com/revenac/apiserver/internal/db"
	"github.com/revenac/apiserver/internal/logging"
	"github.com/revenac/apiserver/internal/metrics"
	"github.com/revenac/apiserver/internal/mq"
	"github.com/revenac/apiserver/internal/services"
	"github.com/revenac/apiserver/internal/store"
	"github.com/revenac/apiserver/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// workerCmd represents the worker command.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes machine deposits and issues earn codes",
	Long: `Consumes reverse-vending machine deposits from the message queue,
stores one earn code per deposit and publishes it on the codes channel.

	MQ_BACKEND=rabbitmq revenac worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log, cfg.Dev())
		metrics.MustRegister()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is required for the worker")
		}
		defer queue.Close()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		codes := services.NewCodeService(store.NewEarnCodeRepository(dbConn), cfg.Ledger.ItemValues, queue, logger)
		deposits := worker.NewDepositWorker(queue, codes, logger)

		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler: promhttp.Handler(),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return deposits.Run(gctx)
		})
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return metricsServer.Shutdown(context.Background())
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
