package cmd

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-taskguard/app/dto"
	grpcserver "github.com/vibast-solutions/ms-go-taskguard/app/grpc"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
	"github.com/vibast-solutions/ms-go-taskguard/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect or reset single-instance locks",
	Long:  "Inspect or reset single-instance locks through the gRPC lock admin service.",
}

var locksStatusCmd = &cobra.Command{
	Use:   "status [task] [args_json] [kwargs_json]",
	Short: "Report whether a task invocation holds its lock",
	Args:  cobra.RangeArgs(1, 3),
	RunE:  runLocksStatus,
}

var locksResetCmd = &cobra.Command{
	Use:   "reset [task] [args_json] [kwargs_json]",
	Short: "Clear the lock of a task invocation",
	Args:  cobra.RangeArgs(1, 3),
	RunE:  runLocksReset,
}

var locksAddr string

// init registers the locks subcommands.
func init() {
	locksCmd.PersistentFlags().StringVar(&locksAddr, "addr", "", "gRPC address (defaults to GRPC_HOST:GRPC_PORT)")
	locksCmd.AddCommand(locksStatusCmd, locksResetCmd)
	rootCmd.AddCommand(locksCmd)
}

func runLocksStatus(cmd *cobra.Command, args []string) error {
	req, err := lockRequest(args)
	if err != nil {
		return err
	}
	client, closeConn, err := dialLockAdmin()
	if err != nil {
		return err
	}
	defer closeConn()

	resp, err := client.IsAlreadyRunning(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s running=%t\n", args[0], resp.GetValue())
	return nil
}

func runLocksReset(cmd *cobra.Command, args []string) error {
	req, err := lockRequest(args)
	if err != nil {
		return err
	}
	client, closeConn, err := dialLockAdmin()
	if err != nil {
		return err
	}
	defer closeConn()

	if _, err := client.ResetLock(cmd.Context(), req); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s lock reset\n", args[0])
	return nil
}

// lockRequest turns positional command arguments into a lock admin request.
func lockRequest(args []string) (*structpb.Struct, error) {
	query := dto.LockQuery{Task: args[0]}
	if len(args) > 1 {
		decoded, err := task.DecodeArgs([]byte(args[1]))
		if err != nil {
			return nil, err
		}
		query.Args = decoded
	}
	if len(args) > 2 {
		decoded, err := task.DecodeKwargs([]byte(args[2]))
		if err != nil {
			return nil, err
		}
		query.Kwargs = decoded
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return query.ToStruct()
}

func dialLockAdmin() (*grpcserver.LockAdminClient, func(), error) {
	addr := locksAddr
	if addr == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		host := cfg.GRPCHost
		if host == "0.0.0.0" {
			host = "localhost"
		}
		addr = net.JoinHostPort(host, cfg.GRPCPort)
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithIdleTimeout(30*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("dial lock admin at %s: %w", addr, err)
	}
	return grpcserver.NewLockAdminClient(conn), func() { _ = conn.Close() }, nil
}
