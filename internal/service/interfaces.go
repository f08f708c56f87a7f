package service

import (
	"context"

	"github.com/raczniakservices/HVAC/internal/dto"
)

// LeadServicer defines the interface for lead triage operations
type LeadServicer interface {
	CreateEvent(ctx context.Context, req *dto.CreateEventRequest) (*dto.EventResponse, error)
	ListEvents(ctx context.Context, limit int) ([]dto.EventResponse, error)
	GetEvent(ctx context.Context, id int64) (*dto.EventResponse, error)

	SetOwner(ctx context.Context, req *dto.OwnerRequest) (*dto.EventResponse, error)
	SetNextStep(ctx context.Context, req *dto.NextStepRequest) (*dto.EventResponse, error)
	SetResult(ctx context.Context, req *dto.ResultRequest) (*dto.EventResponse, error)

	DeleteEvent(ctx context.Context, id int64, confirmUnresolved bool) error
	ClearAll(ctx context.Context, confirmUnresolved bool) (int64, error)

	RecordCall(ctx context.Context, req *dto.TelephonyCallbackRequest) (*dto.EventResponse, bool, error)

	Summary(ctx context.Context) (*dto.SummaryResponse, error)
	DashboardConfig() dto.ConfigResponse
	GetResponseTimes(ctx context.Context, req *dto.ResponseTimesRequest) (*dto.ResponseTimesResponse, error)
}
