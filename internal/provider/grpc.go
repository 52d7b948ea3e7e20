package provider

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"dispatch/internal/domain"
)

// GRPCClient implements DistanceProvider against an internal routing
// service over a bare gRPC connection. The service has no checked-in
// .proto/codegen in this tree — its contract is two methods taking and
// returning a google.protobuf.Struct, which keeps the dependency real
// (actual generated protobuf types from the structpb package) without
// inventing a fake generated client stub.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// Dial opens a connection to the routing service at target.
func Dial(target string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("provider: dial %s: %w", target, err)
	}
	return &GRPCClient{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

const (
	methodRoute  = "/dispatch.distance.v1.DistanceProvider/Route"
	methodMatrix = "/dispatch.distance.v1.DistanceProvider/Matrix"
)

// Route calls the external provider for a single origin-destination pair.
func (c *GRPCClient) Route(ctx context.Context, from, to domain.Point, profile domain.RoutingProfile) (Route, error) {
	req, err := structpb.NewStruct(map[string]any{
		"origin_lat": from.Lat, "origin_lng": from.Lng,
		"dest_lat": to.Lat, "dest_lng": to.Lng,
		"profile": string(profile),
	})
	if err != nil {
		return Route{}, fmt.Errorf("provider: encode route request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodRoute, req, resp); err != nil {
		return Route{}, classify(err)
	}

	return Route{
		DistanceMeters:  resp.Fields["distance_meters"].GetNumberValue(),
		DurationSeconds: resp.Fields["duration_seconds"].GetNumberValue(),
		Geometry:        resp.Fields["geometry"].GetStringValue(),
	}, nil
}

// Matrix calls the external provider for up to MaxMatrixPoints locations
// at once. The provider may return fewer filled cells than requested; the
// caller stitches the response into Missing.
func (c *GRPCClient) Matrix(ctx context.Context, points []domain.Point, profile domain.RoutingProfile) (MatrixResult, error) {
	coords := make([]any, 0, len(points)*2)
	for _, p := range points {
		coords = append(coords, p.Lat, p.Lng)
	}
	req, err := structpb.NewStruct(map[string]any{
		"coords":  coords,
		"n":       float64(len(points)),
		"profile": string(profile),
	})
	if err != nil {
		return MatrixResult{}, fmt.Errorf("provider: encode matrix request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodMatrix, req, resp); err != nil {
		return MatrixResult{}, classify(err)
	}

	n := len(points)
	distances := make([][]float64, n)
	durations := make([][]float64, n)
	for i := range distances {
		distances[i] = make([]float64, n)
		durations[i] = make([]float64, n)
	}

	var missing []int
	distList := resp.Fields["distances"].GetListValue().GetValues()
	durList := resp.Fields["durations"].GetListValue().GetValues()
	for idx := 0; idx < n*n; idx++ {
		i, j := idx/n, idx%n
		if idx >= len(distList) || idx >= len(durList) {
			missing = append(missing, idx)
			continue
		}
		distances[i][j] = distList[idx].GetNumberValue()
		durations[i][j] = durList[idx].GetNumberValue()
	}

	return MatrixResult{Distances: distances, Durations: durations, Missing: missing}, nil
}

func classify(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	switch st.Code() {
	case codes.DeadlineExceeded, codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%w: %s", ErrTransient, st.Message())
	default:
		return fmt.Errorf("provider: %s: %s", st.Code(), st.Message())
	}
}

// dialTimeout is a 5-second per-call deadline. No call in the module
// applies it; the distance oracle sets its own deadlines.
const dialTimeout = 5 * time.Second
