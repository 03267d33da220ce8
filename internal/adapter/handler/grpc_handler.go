package handler

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/core/service"
)

const inventoryServiceName = "commerce.InventoryService"

// JSONCodec carries gRPC messages as JSON. Install it with grpc.ForceServerCodec
// on the server and grpc.ForceCodec on clients.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return "json" }

type InventoryRequest struct {
	SkuCode     string `json:"sku_code"`
	WarehouseID int64  `json:"warehouse_id"`
}

func (r *InventoryRequest) key() domain.InventoryKey {
	return domain.InventoryKey{SkuCode: r.SkuCode, WarehouseID: r.WarehouseID}
}

type QuantityCommand struct {
	SkuCode     string `json:"sku_code"`
	WarehouseID int64  `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
	RequestID   string `json:"request_id,omitempty"`
}

func (r *QuantityCommand) key() domain.InventoryKey {
	return domain.InventoryKey{SkuCode: r.SkuCode, WarehouseID: r.WarehouseID}
}

type InventoryResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Inventory *domain.Inventory `json:"inventory,omitempty"`
}

type RollupResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Result  *domain.RollupResult `json:"result,omitempty"`
}

type InventoryServer interface {
	GetInventory(context.Context, *InventoryRequest) (*InventoryResponse, error)
	Allocate(context.Context, *QuantityCommand) (*InventoryResponse, error)
	Release(context.Context, *QuantityCommand) (*InventoryResponse, error)
	Rollup(context.Context, *InventoryRequest) (*RollupResponse, error)
}

type GRPCHandler struct {
	inventory *service.InventoryService
	logger    *zap.Logger
}

func NewGRPCHandler(inventory *service.InventoryService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{inventory: inventory, logger: logger}
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

func (h *GRPCHandler) GetInventory(ctx context.Context, req *InventoryRequest) (*InventoryResponse, error) {
	inv, err := h.inventory.GetInventory(ctx, req.key())
	return h.inventoryResponse(inv, err, "ok"), nil
}

func (h *GRPCHandler) Allocate(ctx context.Context, req *QuantityCommand) (*InventoryResponse, error) {
	var (
		inv *domain.Inventory
		err error
	)
	if req.RequestID != "" {
		inv, err = h.inventory.AllocateOnce(ctx, req.RequestID, req.key(), req.Quantity)
	} else {
		inv, err = h.inventory.Allocate(ctx, req.key(), req.Quantity)
	}
	return h.inventoryResponse(inv, err, "allocated"), nil
}

func (h *GRPCHandler) Release(ctx context.Context, req *QuantityCommand) (*InventoryResponse, error) {
	inv, err := h.inventory.Release(ctx, req.key(), req.Quantity)
	return h.inventoryResponse(inv, err, "released"), nil
}

func (h *GRPCHandler) Rollup(ctx context.Context, req *InventoryRequest) (*RollupResponse, error) {
	result, err := h.inventory.ProcessRollup(ctx, req.key())
	if err != nil {
		return &RollupResponse{Success: false, Message: h.message(err)}, nil
	}
	return &RollupResponse{Success: true, Message: "rolled up", Result: &result}, nil
}

func (h *GRPCHandler) inventoryResponse(inv *domain.Inventory, err error, ok string) *InventoryResponse {
	if err != nil {
		return &InventoryResponse{Success: false, Message: h.message(err)}
	}
	return &InventoryResponse{Success: true, Message: ok, Inventory: inv}
}

func (h *GRPCHandler) message(err error) string {
	switch {
	case errors.Is(err, service.ErrDuplicateRequest):
		return "duplicate request"
	case errors.Is(err, service.ErrInsufficientStock):
		return "insufficient stock"
	case errors.Is(err, service.ErrInventoryNotFound):
		return "inventory not found"
	case errors.Is(err, service.ErrRollupLocked):
		return "rollup in progress"
	case errors.Is(err, service.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidInventory):
		return err.Error()
	}
	h.logger.Error("grpc request failed", zap.Error(err))
	return "internal error"
}

func unaryHandler[Req any](method string, call func(InventoryServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InventoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + inventoryServiceName + "/" + method,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(InventoryServer), ctx, req.(*Req))
		})
	}
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: inventoryServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetInventory",
			Handler: unaryHandler("GetInventory", func(s InventoryServer, ctx context.Context, in *InventoryRequest) (any, error) {
				return s.GetInventory(ctx, in)
			}),
		},
		{
			MethodName: "Allocate",
			Handler: unaryHandler("Allocate", func(s InventoryServer, ctx context.Context, in *QuantityCommand) (any, error) {
				return s.Allocate(ctx, in)
			}),
		},
		{
			MethodName: "Release",
			Handler: unaryHandler("Release", func(s InventoryServer, ctx context.Context, in *QuantityCommand) (any, error) {
				return s.Release(ctx, in)
			}),
		},
		{
			MethodName: "Rollup",
			Handler: unaryHandler("Rollup", func(s InventoryServer, ctx context.Context, in *InventoryRequest) (any, error) {
				return s.Rollup(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "commerce/inventory",
}

// InventoryClient calls InventoryService over a connection dialed with JSONCodec.
type InventoryClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryClient(cc grpc.ClientConnInterface) *InventoryClient {
	return &InventoryClient{cc: cc}
}

func (c *InventoryClient) GetInventory(ctx context.Context, in *InventoryRequest, opts ...grpc.CallOption) (*InventoryResponse, error) {
	out := new(InventoryResponse)
	if err := c.cc.Invoke(ctx, "/"+inventoryServiceName+"/GetInventory", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) Allocate(ctx context.Context, in *QuantityCommand, opts ...grpc.CallOption) (*InventoryResponse, error) {
	out := new(InventoryResponse)
	if err := c.cc.Invoke(ctx, "/"+inventoryServiceName+"/Allocate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) Release(ctx context.Context, in *QuantityCommand, opts ...grpc.CallOption) (*InventoryResponse, error) {
	out := new(InventoryResponse)
	if err := c.cc.Invoke(ctx, "/"+inventoryServiceName+"/Release", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) Rollup(ctx context.Context, in *InventoryRequest, opts ...grpc.CallOption) (*RollupResponse, error) {
	out := new(RollupResponse)
	if err := c.cc.Invoke(ctx, "/"+inventoryServiceName+"/Rollup", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
