package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-taskguard/app/controller"
	grpcserver "github.com/vibast-solutions/ms-go-taskguard/app/grpc"
	"github.com/vibast-solutions/ms-go-taskguard/app/metrics"
	"github.com/vibast-solutions/ms-go-taskguard/app/queue"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) and gRPC lock administration servers.",
	RunE:  runServe,
}

// init registers the serve command.
func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires dependencies and starts HTTP and gRPC servers.
func runServe(cmd *cobra.Command, _ []string) error {
	d, err := loadDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	registry := metrics.NewRegistry()
	producer := queue.NewTaskProducer(d.redis)
	lockController := controller.NewLockController(d.tasks, d.log)
	taskController := controller.NewTaskController(d.tasks, producer, d.log)

	e := setupHTTPServer(d.log, registry, lockController, taskController)

	grpcAddr := net.JoinHostPort(d.cfg.GRPCHost, d.cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return err
	}
	grpcServer := setupGRPCServer(grpcserver.NewServer(d.tasks, d.log))

	go func() {
		httpAddr := net.JoinHostPort(d.cfg.HTTPHost, d.cfg.HTTPPort)
		d.log.Infof("Starting HTTP server on %s", httpAddr)
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			d.log.Fatalf("HTTP server error: %v", err)
		}
	}()

	go func() {
		d.log.Infof("Starting gRPC server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			d.log.Fatalf("gRPC server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	d.log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		d.log.Errorf("HTTP shutdown error: %v", err)
	}
	grpcServer.GracefulStop()

	d.log.Info("Server stopped")
	return nil
}

// setupHTTPServer configures the Echo HTTP server and routes.
func setupHTTPServer(logger logrus.FieldLogger, gatherer prometheus.Gatherer, locks *controller.LockController, tasks *controller.TaskController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method": v.Method,
				"uri":    v.URI,
				"status": v.Status,
			}).Debug("HTTP request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())

	lockGroup := e.Group("/locks")
	lockGroup.GET("/:task", locks.Status)
	lockGroup.DELETE("/:task", locks.Reset)

	taskGroup := e.Group("/tasks")
	taskGroup.GET("", tasks.List)
	taskGroup.POST("/:task", tasks.Enqueue)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return e
}

// setupGRPCServer builds the gRPC server with the lock admin service.
func setupGRPCServer(lockAdmin grpcserver.LockAdminServer) *grpc.Server {
	grpcServer := grpc.NewServer()
	grpcserver.RegisterLockAdminServer(grpcServer, lockAdmin)
	return grpcServer
}
