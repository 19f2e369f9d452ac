package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-taskguard/app/metrics"
	"github.com/vibast-solutions/ms-go-taskguard/app/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "consume [consumer_name]",
	Short: "Start a task worker",
	Long:  "Start a worker that reads task invocations from the Redis stream and runs them under the single-instance lock.",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsume,
}

var consumeRunTimeout time.Duration

// init registers the consume command.
func init() {
	consumeCmd.Flags().DurationVar(&consumeRunTimeout, "run-timeout", 0, "deadline for a single task run (0 disables)")
	rootCmd.AddCommand(consumeCmd)
}

// runConsume starts the task queue consumer.
func runConsume(cmd *cobra.Command, args []string) error {
	consumerName := args[0]

	d, err := loadDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	if d.cfg.MetricsPort != "" {
		go serveMetrics(d.cfg.MetricsPort, d)
	}

	consumer := queue.NewTaskConsumer(d.redis, d.tasks, consumerName, d.log).WithRunTimeout(consumeRunTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		d.log.Info("Received shutdown signal, stopping consumer...")
		cancel()
	}()

	if err := consumer.Run(ctx); err != nil {
		return err
	}

	d.log.Info("Consumer stopped")
	return nil
}

func serveMetrics(port string, d *deps) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.NewRegistry(), promhttp.HandlerOpts{}))

	addr := net.JoinHostPort(d.cfg.HTTPHost, port)
	d.log.Infof("Serving worker metrics on %s", addr)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		d.log.WithError(err).Error("Metrics server stopped")
	}
}
