package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/dto"
	"github.com/raczniakservices/HVAC/internal/repository"
)

// DefaultReportWindow is used when a report query gives no start.
const DefaultReportWindow = 30 * 24 * time.Hour

// GetResponseTimes aggregates time-to-outcome from the activity ledger
func (s *LeadService) GetResponseTimes(ctx context.Context, req *dto.ResponseTimesRequest) (*dto.ResponseTimesResponse, error) {
	if s.ledger == nil {
		return nil, domain.ErrReportingDisabled
	}

	query := repository.MetricsQuery{From: req.From, To: req.To, GroupBy: req.GroupBy}
	if query.To == 0 {
		query.To = s.clock().Unix()
	}
	if query.From == 0 {
		query.From = query.To - int64(DefaultReportWindow/time.Second)
	}

	if query.From > query.To {
		s.log.Warn("Invalid time range for response times",
			zap.Int64("from", query.From),
			zap.Int64("to", query.To))
		return nil, domain.NewValidationError("from", "from must be less than or equal to to")
	}
	if !repository.ValidGroupBy(query.GroupBy) {
		return nil, domain.NewValidationError("group_by", fmt.Sprintf("unsupported group_by value: %s (supported: outcome, source, owner, day)", query.GroupBy))
	}

	s.log.Info("Querying response times",
		zap.Int64("from", query.From),
		zap.Int64("to", query.To),
		zap.String("group_by", query.GroupBy))

	result, err := s.ledger.GetMetrics(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get response times from ledger: %w", err)
	}

	return dto.NewResponseTimesResponse(query, result), nil
}
