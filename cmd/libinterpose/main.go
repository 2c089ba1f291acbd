//go:build linux && cgo

// Command libinterpose is the LD_PRELOAD library that accounts file I/O of
// the process it is loaded into and writes a trace to $KICKSTART_PREFIX.<pid>.
//
//	go build -buildmode=c-shared -o libinterpose.so ./cmd/libinterpose
//	KICKSTART_PREFIX=/tmp/ks LD_PRELOAD=./libinterpose.so some-program
package main

/*
#cgo LDFLAGS: -ldl
#include "shim.h"
*/
import "C"

import (
	"os"

	"github.com/majorcontext/interpose/internal/config"
	"github.com/majorcontext/interpose/internal/interpose"
	"github.com/majorcontext/interpose/internal/log"
	"github.com/majorcontext/interpose/internal/procstat"
	"github.com/majorcontext/interpose/internal/symbols"
)

var tracer *interpose.Tracer

func main() {}

func init() {
	cfg, cfgErr := config.Load(os.Getenv)

	if err := log.Init(log.Options{
		Verbose:       cfg.Debug,
		DebugDir:      cfg.DebugDir,
		RetentionDays: cfg.RetentionDays,
	}); err != nil {
		log.Warn("unable to open debug log", "dir", cfg.DebugDir, "error", err)
	}
	if cfgErr != nil {
		log.Warn("ignoring invalid configuration", "error", cfgErr)
	}

	collector := procstat.NewCollector()
	if ticks := int64(C.ki_clock_ticks()); ticks > 0 {
		collector.ClockTicks = ticks
	}

	tracer = interpose.New(newCalls(symbols.NewResolver(resolveNext, log.Logger())), interpose.Options{
		Config:    cfg,
		Collector: collector,
	})
	if err := tracer.Start(); err != nil {
		log.Error("starting tracer", "error", err)
		return
	}
	C.ki_mark_ready()
}
