//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/dashboard"
)

// pauseWhileStopped hides s on Ctrl-Z and refreshes it on fg until ctx ends.
func pauseWhileStopped(ctx context.Context, s *dashboard.Session, log *zap.Logger) {
	h := &suspender{
		session: s,
		stop:    func() error { return syscall.Kill(syscall.Getpid(), syscall.SIGSTOP) },
		log:     log,
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTSTP, syscall.SIGCONT)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				if sig == syscall.SIGTSTP {
					h.suspend()
				} else {
					h.resume(ctx)
				}
			}
		}
	}()
}
