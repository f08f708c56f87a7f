package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/dashboard"
)

// suspender stops background refresh while the terminal has put watch in the
// background and catches up once it is resumed.
type suspender struct {
	session *dashboard.Session
	stop    func() error
	log     *zap.Logger
}

func (h *suspender) suspend() {
	h.session.SetHidden(true)
	if err := h.stop(); err != nil {
		h.log.Warn("Failed to stop process", zap.Error(err))
	}
}

func (h *suspender) resume(ctx context.Context) {
	h.session.SetHidden(false)
	if err := h.session.Refresh(ctx, true); err != nil {
		h.log.Warn("Refresh after resume failed", zap.Error(err))
	}
}
