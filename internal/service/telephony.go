package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/dto"
)

// RecordCall merges a provider callback into the lead for its call. The
// boolean reports whether a new lead was created.
func (s *LeadService) RecordCall(ctx context.Context, req *dto.TelephonyCallbackRequest) (*dto.EventResponse, bool, error) {
	report := req.Report()
	if !report.Correlated() {
		s.log.Warn("Telephony callback without a usable CallSid, storing uncorrelated",
			zap.String("call_sid", report.CallSid))
	}

	now := s.clock()
	event, created, err := s.repository.UpsertByCallSid(ctx, report, now)
	if err != nil {
		s.log.Error("Failed to record telephony callback",
			zap.String("call_sid", report.CallSid),
			zap.Error(err))
		return nil, false, err
	}

	action, kind := "merged", domain.ActivityCallUpdated
	if created {
		action, kind = "created", domain.ActivityCreated
	}

	s.log.Info("Telephony callback recorded",
		zap.Int64("event_id", event.ID),
		zap.String("call_sid", report.CallSid),
		zap.String("provider_status", report.ProviderStatus),
		zap.Bool("created", created))

	s.recorder.EventIngested(string(domain.SourceTelephony), action)
	s.publish(ctx, kind, event, now)
	return s.render(event, now), created, nil
}
