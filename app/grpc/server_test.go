package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/vibast-solutions/ms-go-taskguard/app/dto"
	"github.com/vibast-solutions/ms-go-taskguard/app/jobs"
	"github.com/vibast-solutions/ms-go-taskguard/app/lock"
	"github.com/vibast-solutions/ms-go-taskguard/app/service"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
	"github.com/vibast-solutions/ms-go-taskguard/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newLockAdmin(t *testing.T) (*LockAdminClient, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger, _ := logtest.NewNullLogger()
	provider := lock.NewProviderFor(lock.KindRedis, lock.Stores{Redis: client}, lock.WithLogger(logger))
	svc := service.NewTaskService(service.NewGuard(provider, config.TaskLimits{}, logger), logger)
	if err := jobs.Register(svc); err != nil {
		t.Fatalf("jobs.Register: %v", err)
	}
	plain := task.Definition{Name: "plain", Handler: func(context.Context, *task.Context) (any, error) { return nil, nil }}
	if err := svc.Register(plain); err != nil {
		t.Fatalf("Register: %v", err)
	}

	listener := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterLockAdminServer(srv, NewServer(svc, logger))
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return NewLockAdminClient(conn), client
}

func request(t *testing.T, query dto.LockQuery) *structpb.Struct {
	t.Helper()
	req, err := query.ToStruct()
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	return req
}

func TestLockAdminIsAlreadyRunningAndReset(t *testing.T) {
	t.Parallel()

	admin, client := newLockAdmin(t)
	ctx := context.Background()
	req := request(t, dto.LockQuery{Task: jobs.AddTask, Args: []any{4, 4}})

	resp, err := admin.IsAlreadyRunning(ctx, req)
	if err != nil {
		t.Fatalf("IsAlreadyRunning: %v", err)
	}
	if resp.GetValue() {
		t.Fatalf("expected lock to be free")
	}

	if _, ok, err := lock.NewRedisBackend(client).Acquire(ctx, jobs.AddTask, time.Minute); err != nil || !ok {
		t.Fatalf("external acquire: ok=%v err=%v", ok, err)
	}
	resp, err = admin.IsAlreadyRunning(ctx, req)
	if err != nil || !resp.GetValue() {
		t.Fatalf("expected lock to be held: resp=%v err=%v", resp, err)
	}

	if _, err := admin.ResetLock(ctx, req); err != nil {
		t.Fatalf("ResetLock: %v", err)
	}
	resp, err = admin.IsAlreadyRunning(ctx, req)
	if err != nil || resp.GetValue() {
		t.Fatalf("expected lock to be free after reset: resp=%v err=%v", resp, err)
	}
}

func TestLockAdminMatchesQueuedArguments(t *testing.T) {
	t.Parallel()

	admin, client := newLockAdmin(t)
	ctx := context.Background()

	queued, err := task.DecodeArgs([]byte("[4.0,9007199254740993]"))
	if err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	identifier, err := service.Identifier(&task.Context{Name: jobs.MulTask, Args: queued}, true)
	if err != nil {
		t.Fatalf("Identifier: %v", err)
	}
	if _, ok, err := lock.NewRedisBackend(client).Acquire(ctx, identifier, time.Minute); err != nil || !ok {
		t.Fatalf("external acquire: ok=%v err=%v", ok, err)
	}

	typed, err := task.DecodeArgs([]byte("[4,9007199254740993]"))
	if err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	resp, err := admin.IsAlreadyRunning(ctx, request(t, dto.LockQuery{Task: jobs.MulTask, Args: typed}))
	if err != nil || !resp.GetValue() {
		t.Fatalf("expected the queued invocation to be reported running: resp=%v err=%v", resp, err)
	}

	other, _ := task.DecodeArgs([]byte("[4,9007199254740992]"))
	resp, err = admin.IsAlreadyRunning(ctx, request(t, dto.LockQuery{Task: jobs.MulTask, Args: other}))
	if err != nil || resp.GetValue() {
		t.Fatalf("a neighbouring integer must not match: resp=%v err=%v", resp, err)
	}
}

func TestLockAdminErrorCodes(t *testing.T) {
	t.Parallel()

	admin, _ := newLockAdmin(t)
	ctx := context.Background()

	badArgs, err := structpb.NewStruct(map[string]any{"task": jobs.AddTask, "args": "nope"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	tests := []struct {
		name string
		req  *structpb.Struct
		code codes.Code
	}{
		{name: "missing task", req: &structpb.Struct{}, code: codes.InvalidArgument},
		{name: "bad args", req: badArgs, code: codes.InvalidArgument},
		{name: "unknown task", req: request(t, dto.LockQuery{Task: "jobs.unknown"}), code: codes.NotFound},
		{name: "not single instance", req: request(t, dto.LockQuery{Task: "plain"}), code: codes.FailedPrecondition},
	}

	for _, tt := range tests {
		if _, err := admin.IsAlreadyRunning(ctx, tt.req); status.Code(err) != tt.code {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.code, err)
		}
		if _, err := admin.ResetLock(ctx, tt.req); status.Code(err) != tt.code {
			t.Fatalf("%s: reset expected %v, got %v", tt.name, tt.code, err)
		}
	}
}
