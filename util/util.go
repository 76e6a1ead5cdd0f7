package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// ReqContext returns a context that dies with the process: SIGINT or
// SIGTERM cancels it.
func ReqContext(cctx *cli.Context) context.Context {
	tCtx := context.Background()
	if cctx != nil {
		tCtx = cctx.Context
	}
	ctx, done := context.WithCancel(tCtx)
	sigChan := make(chan os.Signal, 2)
	go func() {
		<-sigChan
		done()
	}()
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	return ctx
}
