// Command venusd is a minimal example host process: it maps a single
// shared-memory ring, wires it to a deterministic backend, and runs
// until interrupted. It exists to demonstrate wiring gpucore.New, not as
// a production hypervisor-side daemon — the actual shared-memory
// mapping, guest lifecycle, and vsock control channel belong to the
// surrounding hypervisor, outside this module's scope.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/venus-hv/gpucore"
	"github.com/venus-hv/gpucore/backend"
	"github.com/venus-hv/gpucore/metrics"
	"github.com/venus-hv/gpucore/ring"
)

const (
	ringBufferSize = 1 << 16
	ringExtraSize  = 1 << 20
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	shared := make([]byte, 64+ringBufferSize+ringExtraSize)
	layout := ring.Layout{
		Shared:       shared,
		HeadOffset:   0,
		TailOffset:   4,
		StatusOffset: 8,
		BufferOffset: 64,
		BufferSize:   ringBufferSize,
		ExtraOffset:  64 + ringBufferSize,
		ExtraSize:    ringExtraSize,
	}

	r, err := ring.Create(layout, ring.Threaded)
	if err != nil {
		log.Fatal("create ring", zap.Error(err))
	}

	ctx := gpucore.New(r, backend.NewStub(), gpucore.WithLogger(log))
	prometheus.MustRegister(metrics.NewRingCollector("primary", r))
	prometheus.MustRegister(metrics.NewObjectTableCollector(ctx.Objects))

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx.Start(runCtx)
	log.Info("venusd started")
	<-runCtx.Done()

	log.Info("venusd shutting down")
	if err := ctx.Close(context.Background()); err != nil {
		log.Error("close", zap.Error(err))
	}
}
