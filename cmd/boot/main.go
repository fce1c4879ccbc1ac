// Command boot wires a complete mcore kernel together: the scheduler, the
// alarm-driven timer, a prometheus /metrics endpoint, and a websocket
// dashboard feed, then runs a small demo workload exercising aperiodic,
// periodic, and mutex/semaphore-synchronized threads. Its shape follows
// control_plane/main.go: environment-derived config, a startup banner, and
// an HTTP server exposing observability endpoints alongside the thing
// actually being run.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orbitos/mcore/alarm"
	"github.com/orbitos/mcore/criterion"
	"github.com/orbitos/mcore/kernel"
	"github.com/orbitos/mcore/middleware"
	"github.com/orbitos/mcore/monitor"
)

func main() {
	cfg := kernel.ConfigFromEnv()

	log.Printf("mcore: booting — cores=%d criterion=%s preemptive=%v multitask=%v monitored=%v",
		cfg.Cores, cfg.Discipline, cfg.Preemptive, cfg.Multitask, cfg.Monitored)

	k := kernel.New(cfg)

	alarms := alarm.NewList(time.Millisecond)
	go alarms.Run()
	defer alarms.Stop()

	if cfg.Monitored {
		recorder := monitor.NewRecorder(log.Default(), 5)
		k.SetSampler(recorder)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(takeSnapshot(k))
	})

	hub := NewDashboardHub(k)
	mux.HandleFunc("/dashboard/ws", hub.serveWS)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	addr := os.Getenv("BOOT_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{Addr: addr, Handler: middleware.CORS(mux)}

	go func() {
		log.Printf("mcore: debug/dashboard server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("mcore: http server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("mcore: signal received, shutting down debug server")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	k.Boot(func(main *kernel.Thread) {
		runDemo(k, alarms, main)
	})

	// Boot returns once the MAIN thread exits; the debug/dashboard server
	// and any still-running periodic threads stay up until a signal asks
	// the process to stop, matching how a demo harness should outlive the
	// one-shot workload it launched.
	<-ctx.Done()
}

// runDemo spawns three workers synchronized by a Mutex and a Semaphore plus
// one rate-monotonic periodic heartbeat thread, waits for the three
// workers, logs the final counter once, and returns.
func runDemo(k *kernel.Kernel, alarms *alarm.List, main *kernel.Thread) {
	mu := kernel.NewMutex()
	sem := kernel.NewSemaphore(0)
	counter := 0

	for i := 0; i < 3; i++ {
		i := i
		k.Spawn(criterion.FP(0, 5), fmt.Sprintf("worker-%d", i), func(t *kernel.Thread) {
			for j := 0; j < 5; j++ {
				mu.Lock(t)
				counter++
				mu.Unlock(t)
				t.CheckPreempt()
			}
			sem.V(t)
		})
	}

	if k.Cores() > 0 {
		heartbeat := k.NewPeriodic(alarms, criterion.RM(0, 50*time.Millisecond), "heartbeat", func(t *kernel.Thread, p *kernel.Periodic) {
			for i := 0; i < 20; i++ {
				t.WaitNext(p)
				log.Printf("mcore: heartbeat release %d (missed=%d)", i, p.Missed())
			}
		})
		heartbeat.Resume()
	}

	for i := 0; i < 3; i++ {
		sem.P(main)
	}
	log.Printf("mcore: demo workers finished, counter=%d", counter)
}
