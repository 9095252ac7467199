package grpc_control

import (
	"context"

	"price-oracle/src/models"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// -----------------------------------------------------------------------------
// Client is a typed wrapper over the control RPCs, used by the CLI.
// -----------------------------------------------------------------------------

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out proto.Message) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
}

// -----------------------------------------------------------------------------

func (c *Client) RegisterPair(ctx context.Context, caller, pair string) error {
	req, err := structpb.NewStruct(map[string]interface{}{"caller": caller, "pair": pair})
	if err != nil {
		return err
	}
	return c.invoke(ctx, "RegisterPair", req, &emptypb.Empty{})
}

func (c *Client) SubmitPrices(ctx context.Context, producer string, pairsData map[string]float64) (models.MSubmitResult, error) {
	data := make(map[string]interface{}, len(pairsData))
	for pair, v := range pairsData {
		data[pair] = v
	}
	req, err := structpb.NewStruct(map[string]interface{}{"producer": producer, "pairs_data": data})
	if err != nil {
		return models.MSubmitResult{}, err
	}

	var result models.MSubmitResult
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "SubmitPrices", req, out); err != nil {
		return result, err
	}
	err = fromMessage(out, &result)
	return result, err
}

// -----------------------------------------------------------------------------

func (c *Client) GetPrice(ctx context.Context, pair string) (models.MPublishedPrice, error) {
	var price models.MPublishedPrice
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "GetPrice", wrapperspb.String(pair), out); err != nil {
		return price, err
	}
	err := fromMessage(out, &price)
	return price, err
}

func (c *Client) ListPairs(ctx context.Context) ([]string, error) {
	var pairs []string
	out := &structpb.ListValue{}
	if err := c.invoke(ctx, "ListPairs", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	err := fromMessage(out, &pairs)
	return pairs, err
}

func (c *Client) ListPrices(ctx context.Context) ([]models.MPublishedPrice, error) {
	var prices []models.MPublishedPrice
	out := &structpb.ListValue{}
	if err := c.invoke(ctx, "ListPrices", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	err := fromMessage(out, &prices)
	return prices, err
}

func (c *Client) GetSubmission(ctx context.Context, producer string) (models.MSubmission, error) {
	var sub models.MSubmission
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "GetSubmission", wrapperspb.String(producer), out); err != nil {
		return sub, err
	}
	err := fromMessage(out, &sub)
	return sub, err
}

func (c *Client) GetStatus(ctx context.Context) (models.MOracleStatus, error) {
	var st models.MOracleStatus
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "GetStatus", &emptypb.Empty{}, out); err != nil {
		return st, err
	}
	err := fromMessage(out, &st)
	return st, err
}

// -----------------------------------------------------------------------------

func (c *Client) GetSchedule(ctx context.Context) (models.MProducerSchedule, error) {
	return c.schedule(ctx, "GetSchedule")
}

func (c *Client) ReloadSchedule(ctx context.Context) (models.MProducerSchedule, error) {
	return c.schedule(ctx, "ReloadSchedule")
}

func (c *Client) schedule(ctx context.Context, method string) (models.MProducerSchedule, error) {
	var s models.MProducerSchedule
	out := &structpb.Struct{}
	if err := c.invoke(ctx, method, &emptypb.Empty{}, out); err != nil {
		return s, err
	}
	err := fromMessage(out, &s)
	return s, err
}
