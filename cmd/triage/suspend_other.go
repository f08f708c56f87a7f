//go:build !unix

package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/dashboard"
)

func pauseWhileStopped(ctx context.Context, s *dashboard.Session, log *zap.Logger) {}
