package dto

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-taskguard/app/service"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestLockQueryFromEcho(t *testing.T) {
	t.Parallel()

	e := echo.New()
	q := url.Values{}
	q.Set("args", "[4,4]")
	q.Set("kwargs", `{"b":1}`)
	req := httptest.NewRequest(http.MethodGet, "/locks/jobs.mul?"+q.Encode(), nil)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("task")
	ctx.SetParamValues("jobs.mul")

	query, err := LockQueryFromEcho(ctx)
	if err != nil {
		t.Fatalf("LockQueryFromEcho: %v", err)
	}
	if query.Task != "jobs.mul" || len(query.Args) != 2 || query.Kwargs["b"] == nil {
		t.Fatalf("unexpected query %+v", query)
	}
	if err := query.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLockQueryFromEchoInvalidArgs(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/locks/jobs.mul?args=nope", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("task")
	ctx.SetParamValues("jobs.mul")

	if _, err := LockQueryFromEcho(ctx); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
}

func TestLockQueryStructRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := LockQuery{Task: "jobs.mul", Args: []any{4, 4}}.ToStruct()
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	query, err := LockQueryFromStruct(s)
	if err != nil {
		t.Fatalf("LockQueryFromStruct: %v", err)
	}
	if query.Task != "jobs.mul" || len(query.Args) != 2 || query.Kwargs != nil {
		t.Fatalf("unexpected query %+v", query)
	}

	bad, _ := structpb.NewStruct(map[string]any{"task": "jobs.mul", "args": "4,4"})
	if _, err := LockQueryFromStruct(bad); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
	if err := (LockQuery{}).Validate(); !errors.Is(err, ErrMissingTask) {
		t.Fatalf("expected ErrMissingTask, got %v", err)
	}
}

func TestEnqueueRequestValidate(t *testing.T) {
	t.Parallel()

	e := echo.New()
	body := `{"task_id":" t-1 ","args":[4,4],"kwargs":null}`
	req := httptest.NewRequest(http.MethodPost, "/tasks/jobs.add", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("task")
	ctx.SetParamValues("jobs.add")

	enqueue, err := EnqueueFromEcho(ctx)
	if err != nil {
		t.Fatalf("EnqueueFromEcho: %v", err)
	}
	if enqueue.Task != "jobs.add" || enqueue.TaskID != "t-1" || enqueue.Kwargs != nil {
		t.Fatalf("unexpected request %+v", enqueue)
	}
	if err := enqueue.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	missing := EnqueueRequest{Task: "jobs.add"}
	if err := missing.Validate(); !errors.Is(err, ErrMissingTaskID) {
		t.Fatalf("expected ErrMissingTaskID, got %v", err)
	}
	badArgs := EnqueueRequest{Task: "jobs.add", TaskID: "t", Args: []byte(`{"a":1}`)}
	if err := badArgs.Validate(); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
}

func TestLockQueryStructKeepsNumberText(t *testing.T) {
	t.Parallel()

	args, err := task.DecodeArgs([]byte("[4.0,9007199254740993]"))
	if err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	s, err := LockQuery{Task: "jobs.mul", Args: args, Kwargs: map[string]any{"n": json.Number("1.50")}}.ToStruct()
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	if got := s.GetFields()["args"].GetStringValue(); got != "[4.0,9007199254740993]" {
		t.Fatalf("expected args as JSON text, got %q", got)
	}

	query, err := LockQueryFromStruct(s)
	if err != nil {
		t.Fatalf("LockQueryFromStruct: %v", err)
	}
	if query.Args[1] != json.Number("9007199254740993") || query.Kwargs["n"] != json.Number("1.50") {
		t.Fatalf("numbers must survive the round trip, got %+v", query)
	}

	list, _ := structpb.NewStruct(map[string]any{"task": "jobs.mul", "args": []any{4, 4}, "kwargs": map[string]any{"a": "x"}})
	query, err = LockQueryFromStruct(list)
	if err != nil || len(query.Args) != 2 || query.Kwargs["a"] != "x" {
		t.Fatalf("native list and struct values must be accepted: %+v err=%v", query, err)
	}
}

func TestLockQueryHTTPAndGRPCShareIdentifier(t *testing.T) {
	t.Parallel()

	e := echo.New()
	q := url.Values{}
	q.Set("args", "[4.0, 9007199254740993]")
	req := httptest.NewRequest(http.MethodGet, "/locks/jobs.mul?"+q.Encode(), nil)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("task")
	ctx.SetParamValues("jobs.mul")

	fromHTTP, err := LockQueryFromEcho(ctx)
	if err != nil {
		t.Fatalf("LockQueryFromEcho: %v", err)
	}
	s, err := fromHTTP.ToStruct()
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	fromGRPC, err := LockQueryFromStruct(s)
	if err != nil {
		t.Fatalf("LockQueryFromStruct: %v", err)
	}

	httpID, err := service.Identifier(&task.Context{Name: fromHTTP.Task, Args: fromHTTP.Args}, true)
	if err != nil {
		t.Fatalf("Identifier: %v", err)
	}
	grpcID, err := service.Identifier(&task.Context{Name: fromGRPC.Task, Args: fromGRPC.Args}, true)
	if err != nil {
		t.Fatalf("Identifier: %v", err)
	}
	queueArgs, _ := task.DecodeArgs([]byte("[4,9007199254740993]"))
	queueID, err := service.Identifier(&task.Context{Name: "jobs.mul", Args: queueArgs}, true)
	if err != nil {
		t.Fatalf("Identifier: %v", err)
	}
	if httpID != grpcID || httpID != queueID {
		t.Fatalf("identifiers differ: http=%s grpc=%s queue=%s", httpID, grpcID, queueID)
	}
}
