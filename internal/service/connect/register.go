package connect

import (
	"google.golang.org/grpc"

	"github.com/oggyb/muzz-connect/internal/app"
	pb "github.com/oggyb/muzz-connect/internal/proto/connect"
)

// Registrar ties the Connect service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Connect service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Connect service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) error {
	service := NewConnectService(r.appCtx)
	desc, err := pb.ServiceDesc(service.handlers())
	if err != nil {
		return err
	}
	s.RegisterService(desc, service)
	return nil
}
