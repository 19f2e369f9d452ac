package grpc

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-taskguard/app/dto"
	"github.com/vibast-solutions/ms-go-taskguard/app/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Server struct {
	tasks *service.TaskService
	log   logrus.FieldLogger
}

// NewServer constructs a gRPC server handler.
func NewServer(tasks *service.TaskService, logger logrus.FieldLogger) *Server {
	return &Server{tasks: tasks, log: logger}
}

// IsAlreadyRunning reports whether the lock of the requested invocation is held.
func (s *Server) IsAlreadyRunning(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	query, err := s.query(req)
	if err != nil {
		return nil, err
	}

	running, err := s.tasks.IsAlreadyRunning(ctx, query.Task, query.Args, query.Kwargs)
	if err != nil {
		return nil, s.statusError(err)
	}
	return wrapperspb.Bool(running), nil
}

// ResetLock clears the lock of the requested invocation.
func (s *Server) ResetLock(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	query, err := s.query(req)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.ResetLock(ctx, query.Task, query.Args, query.Kwargs); err != nil {
		return nil, s.statusError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) query(req *structpb.Struct) (dto.LockQuery, error) {
	query, err := dto.LockQueryFromStruct(req)
	if err != nil {
		return dto.LockQuery{}, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := query.Validate(); err != nil {
		return dto.LockQuery{}, status.Error(codes.InvalidArgument, err.Error())
	}
	return query, nil
}

func (s *Server) statusError(err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownTask):
		return status.Error(codes.NotFound, "unknown task")
	case errors.Is(err, service.ErrNotSingleInstance):
		return status.Error(codes.FailedPrecondition, "task is not single-instance")
	default:
		s.log.WithError(err).Error("Lock admin call failed")
		return status.Error(codes.Internal, "lock backend failure")
	}
}
