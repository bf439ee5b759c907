package host

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/grpc/metadata"
	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sharedgamemode.host.v1.HostService"

// Method names.
const (
	MethodStatus            = "Status"
	MethodStartVoting       = "StartVoting"
	MethodCancelVoting      = "CancelVoting"
	MethodResolveVoting     = "ResolveVoting"
	MethodCastVote          = "CastVote"
	MethodVeto              = "Veto"
	MethodUpdatePerformance = "UpdatePerformance"
	MethodJoinParticipant   = "JoinParticipant"
	MethodLeaveParticipant  = "LeaveParticipant"
	MethodStartScenario     = "StartScenario"
	MethodCancelScenario    = "CancelScenario"
	MethodMarkTracker       = "MarkTracker"
	MethodAddLabel          = "AddLabel"
	MethodGetStats          = "GetStats"
	MethodSetRotationEntry  = "SetRotationEntry"
	MethodPhaseChanged      = "PhaseChanged"
)

// HostServer is the server API of the host service.
type HostServer interface {
	Status(context.Context, *StatusRequest) (*session.StatusView, error)
	StartVoting(context.Context, *Empty) (*StartVotingResponse, error)
	CancelVoting(context.Context, *Empty) (*Empty, error)
	ResolveVoting(context.Context, *Empty) (*ResolveVotingResponse, error)
	CastVote(context.Context, *BallotRequest) (*Empty, error)
	Veto(context.Context, *BallotRequest) (*Empty, error)
	UpdatePerformance(context.Context, *PerformanceRequest) (*Empty, error)
	JoinParticipant(context.Context, *ParticipantRequest) (*Empty, error)
	LeaveParticipant(context.Context, *ParticipantRequest) (*Empty, error)
	StartScenario(context.Context, *StartScenarioRequest) (*StartScenarioResponse, error)
	CancelScenario(context.Context, *InstanceRequest) (*Empty, error)
	MarkTracker(context.Context, *MarkTrackerRequest) (*session.InstanceView, error)
	AddLabel(context.Context, *LabelRequest) (*Empty, error)
	GetStats(context.Context, *StatsRequest) (*session.StatsView, error)
	SetRotationEntry(context.Context, *RotationEntryRequest) (*Empty, error)
	PhaseChanged(context.Context, *PhaseRequest) (*PhaseResponse, error)
}

var _ HostServer = (*Service)(nil)

// ServiceDesc describes the host service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HostServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodStatus, Handler: unary(MethodStatus, HostServer.Status)},
		{MethodName: MethodStartVoting, Handler: unary(MethodStartVoting, HostServer.StartVoting)},
		{MethodName: MethodCancelVoting, Handler: unary(MethodCancelVoting, HostServer.CancelVoting)},
		{MethodName: MethodResolveVoting, Handler: unary(MethodResolveVoting, HostServer.ResolveVoting)},
		{MethodName: MethodCastVote, Handler: unary(MethodCastVote, HostServer.CastVote)},
		{MethodName: MethodVeto, Handler: unary(MethodVeto, HostServer.Veto)},
		{MethodName: MethodUpdatePerformance, Handler: unary(MethodUpdatePerformance, HostServer.UpdatePerformance)},
		{MethodName: MethodJoinParticipant, Handler: unary(MethodJoinParticipant, HostServer.JoinParticipant)},
		{MethodName: MethodLeaveParticipant, Handler: unary(MethodLeaveParticipant, HostServer.LeaveParticipant)},
		{MethodName: MethodStartScenario, Handler: unary(MethodStartScenario, HostServer.StartScenario)},
		{MethodName: MethodCancelScenario, Handler: unary(MethodCancelScenario, HostServer.CancelScenario)},
		{MethodName: MethodMarkTracker, Handler: unary(MethodMarkTracker, HostServer.MarkTracker)},
		{MethodName: MethodAddLabel, Handler: unary(MethodAddLabel, HostServer.AddLabel)},
		{MethodName: MethodGetStats, Handler: unary(MethodGetStats, HostServer.GetStats)},
		{MethodName: MethodSetRotationEntry, Handler: unary(MethodSetRotationEntry, HostServer.SetRotationEntry)},
		{MethodName: MethodPhaseChanged, Handler: unary(MethodPhaseChanged, HostServer.PhaseChanged)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sharedgamemode/host/v1/host.proto",
}

// RegisterHostServer registers srv on s.
func RegisterHostServer(s grpc.ServiceRegistrar, srv HostServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed method to a grpc.MethodHandler. Requests and
// responses cross the wire as structpb.Struct; domain errors become
// localized statuses.
func unary[Req, Resp any](method string, call func(HostServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed := new(Req)
			if err := fromStruct(req.(*structpb.Struct), typed); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "%s: %v", method, err)
			}
			out, err := call(srv.(HostServer), ctx, typed)
			if err != nil {
				return nil, apperrors.HandleError(err, metadata.LocaleFromContext(ctx))
			}
			encoded, err := toStruct(out)
			if err != nil {
				return nil, status.Errorf(codes.Internal, "%s: %v", method, err)
			}
			return encoded, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}
