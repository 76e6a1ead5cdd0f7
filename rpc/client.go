package rpc

import (
	"context"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
)

// NewMarketClient dials a market node, e.g. "ws://127.0.0.1:8721/rpc/v0".
func NewMarketClient(ctx context.Context, addr string, requestHeader http.Header) (*MarketAPI, jsonrpc.ClientCloser, error) {
	var res MarketAPI
	closer, err := jsonrpc.NewMergeClient(ctx, addr, "Market",
		[]interface{}{&res.Internal}, requestHeader)
	return &res, closer, err
}
