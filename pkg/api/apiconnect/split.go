// Package apiconnect wires the api messages to Connect handlers and clients.
// It is hand-written in the shape of protoc-gen-connect-go output over
// api.JSONCodec; there is no .proto source to regenerate it from.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splittat/pkg/api"
)

// SplitServiceName is the fully-qualified name of the SplitService.
const SplitServiceName = "splittat.v1.SplitService"

// Procedure paths of the SplitService.
const (
	SplitServicePreviewSplitProcedure = "/splittat.v1.SplitService/PreviewSplit"
	SplitServiceCreateSplitProcedure  = "/splittat.v1.SplitService/CreateSplit"
	SplitServiceGetSplitProcedure     = "/splittat.v1.SplitService/GetSplit"
	SplitServiceListSplitsProcedure   = "/splittat.v1.SplitService/ListSplits"
	SplitServiceUpdateSplitProcedure  = "/splittat.v1.SplitService/UpdateSplit"
	SplitServiceDeleteSplitProcedure  = "/splittat.v1.SplitService/DeleteSplit"
)

// SplitServiceHandler is implemented by the server side of the SplitService.
// Every procedure requires an authenticated caller.
type SplitServiceHandler interface {
	PreviewSplit(context.Context, *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error)
	CreateSplit(context.Context, *connect.Request[api.CreateSplitRequest]) (*connect.Response[api.CreateSplitResponse], error)
	GetSplit(context.Context, *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error)
	ListSplits(context.Context, *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error)
	UpdateSplit(context.Context, *connect.Request[api.UpdateSplitRequest]) (*connect.Response[api.UpdateSplitResponse], error)
	DeleteSplit(context.Context, *connect.Request[api.DeleteSplitRequest]) (*connect.Response[api.DeleteSplitResponse], error)
}

// NewSplitServiceHandler builds an HTTP handler serving every SplitService procedure.
// It returns the path prefix to mount it on.
func NewSplitServiceHandler(svc SplitServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.JSONCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(SplitServicePreviewSplitProcedure, connect.NewUnaryHandler(SplitServicePreviewSplitProcedure, svc.PreviewSplit, opts...))
	mux.Handle(SplitServiceCreateSplitProcedure, connect.NewUnaryHandler(SplitServiceCreateSplitProcedure, svc.CreateSplit, opts...))
	mux.Handle(SplitServiceGetSplitProcedure, connect.NewUnaryHandler(SplitServiceGetSplitProcedure, svc.GetSplit, opts...))
	mux.Handle(SplitServiceListSplitsProcedure, connect.NewUnaryHandler(SplitServiceListSplitsProcedure, svc.ListSplits, opts...))
	mux.Handle(SplitServiceUpdateSplitProcedure, connect.NewUnaryHandler(SplitServiceUpdateSplitProcedure, svc.UpdateSplit, opts...))
	mux.Handle(SplitServiceDeleteSplitProcedure, connect.NewUnaryHandler(SplitServiceDeleteSplitProcedure, svc.DeleteSplit, opts...))
	return "/" + SplitServiceName + "/", mux
}

// SplitServiceClient is a client for the SplitService.
type SplitServiceClient interface {
	PreviewSplit(context.Context, *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error)
	CreateSplit(context.Context, *connect.Request[api.CreateSplitRequest]) (*connect.Response[api.CreateSplitResponse], error)
	GetSplit(context.Context, *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error)
	ListSplits(context.Context, *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error)
	UpdateSplit(context.Context, *connect.Request[api.UpdateSplitRequest]) (*connect.Response[api.UpdateSplitResponse], error)
	DeleteSplit(context.Context, *connect.Request[api.DeleteSplitRequest]) (*connect.Response[api.DeleteSplitResponse], error)
}

type splitServiceClient struct {
	previewSplit *connect.Client[api.PreviewSplitRequest, api.PreviewSplitResponse]
	createSplit  *connect.Client[api.CreateSplitRequest, api.CreateSplitResponse]
	getSplit     *connect.Client[api.GetSplitRequest, api.GetSplitResponse]
	listSplits   *connect.Client[api.ListSplitsRequest, api.ListSplitsResponse]
	updateSplit  *connect.Client[api.UpdateSplitRequest, api.UpdateSplitResponse]
	deleteSplit  *connect.Client[api.DeleteSplitRequest, api.DeleteSplitResponse]
}

// NewSplitServiceClient returns a client for the SplitService at baseURL,
// for example http://localhost:8080.
func NewSplitServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SplitServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.JSONCodec{})}, opts...)
	return &splitServiceClient{
		previewSplit: connect.NewClient[api.PreviewSplitRequest, api.PreviewSplitResponse](httpClient, baseURL+SplitServicePreviewSplitProcedure, opts...),
		createSplit:  connect.NewClient[api.CreateSplitRequest, api.CreateSplitResponse](httpClient, baseURL+SplitServiceCreateSplitProcedure, opts...),
		getSplit:     connect.NewClient[api.GetSplitRequest, api.GetSplitResponse](httpClient, baseURL+SplitServiceGetSplitProcedure, opts...),
		listSplits:   connect.NewClient[api.ListSplitsRequest, api.ListSplitsResponse](httpClient, baseURL+SplitServiceListSplitsProcedure, opts...),
		updateSplit:  connect.NewClient[api.UpdateSplitRequest, api.UpdateSplitResponse](httpClient, baseURL+SplitServiceUpdateSplitProcedure, opts...),
		deleteSplit:  connect.NewClient[api.DeleteSplitRequest, api.DeleteSplitResponse](httpClient, baseURL+SplitServiceDeleteSplitProcedure, opts...),
	}
}

func (c *splitServiceClient) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	return c.previewSplit.CallUnary(ctx, req)
}

func (c *splitServiceClient) CreateSplit(ctx context.Context, req *connect.Request[api.CreateSplitRequest]) (*connect.Response[api.CreateSplitResponse], error) {
	return c.createSplit.CallUnary(ctx, req)
}

func (c *splitServiceClient) GetSplit(ctx context.Context, req *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error) {
	return c.getSplit.CallUnary(ctx, req)
}

func (c *splitServiceClient) ListSplits(ctx context.Context, req *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error) {
	return c.listSplits.CallUnary(ctx, req)
}

func (c *splitServiceClient) UpdateSplit(ctx context.Context, req *connect.Request[api.UpdateSplitRequest]) (*connect.Response[api.UpdateSplitResponse], error) {
	return c.updateSplit.CallUnary(ctx, req)
}

func (c *splitServiceClient) DeleteSplit(ctx context.Context, req *connect.Request[api.DeleteSplitRequest]) (*connect.Response[api.DeleteSplitResponse], error) {
	return c.deleteSplit.CallUnary(ctx, req)
}
