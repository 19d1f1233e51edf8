package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	LikesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_likes_total",
		Help: "Likes by result (sent, already_liked, mutual_match)",
	}, []string{"result"})
	MessagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_messages_sent_total",
		Help: "Delivered messages by conversation kind",
	}, []string{"kind"})
	SendsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_sends_rejected_total",
		Help: "Rejected sends by reason",
	}, []string{"reason"})
	StreamViewers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "connect_stream_viewers",
		Help: "Last recounted viewer count per stream",
	}, []string{"stream"})
	RPCDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connect_rpc_duration_seconds",
		Help:    "gRPC handling duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "code"})
)

func init() {
	prometheus.MustRegister(LikesTotal, MessagesSentTotal, SendsRejectedTotal, StreamViewers, RPCDuration)
}

// ObserveViewers records a recount; ended streams drop their series.
func ObserveViewers(streamID string, count int64, active bool) {
	if !active {
		StreamViewers.DeleteLabelValues(streamID)
		return
	}
	StreamViewers.WithLabelValues(streamID).Set(float64(count))
}

// UnaryInterceptor records RPC duration by method and status code.
func UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		RPCDuration.WithLabelValues(info.FullMethod, status.Code(err).String()).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// StreamInterceptor is UnaryInterceptor for streaming RPCs.
func StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		RPCDuration.WithLabelValues(info.FullMethod, status.Code(err).String()).Observe(time.Since(start).Seconds())
		return err
	}
}
