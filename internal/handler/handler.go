package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/dto"
	"github.com/raczniakservices/HVAC/internal/metrics"
	"github.com/raczniakservices/HVAC/internal/repository"
	"github.com/raczniakservices/HVAC/internal/service"
	"github.com/raczniakservices/HVAC/internal/telephony"
)

// Options configures the HTTP surface.
type Options struct {
	// OperatorKey guards the lead API. Empty disables the guard.
	OperatorKey string
	// PublicBaseURL is the externally visible scheme and host used to
	// verify provider signatures behind a proxy.
	PublicBaseURL string
}

type Handler struct {
	leadService service.LeadServicer
	signatures  *telephony.Validator
	recorder    *metrics.Recorder
	opts        Options
	router      *gin.Engine
	log         *zap.Logger
}

func NewHandler(leadService service.LeadServicer, signatures *telephony.Validator, recorder *metrics.Recorder, opts Options, log *zap.Logger) *Handler {
	h := &Handler{
		leadService: leadService,
		signatures:  signatures,
		recorder:    recorder,
		opts:        opts,
		router:      gin.New(),
		log:         log,
	}

	h.router.Use(gin.Recovery(), requestID(), h.requestLogger(), h.observeRequests())
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	if h.recorder != nil {
		h.router.GET("/metrics", gin.WrapH(h.recorder.Handler()))
	}

	calls := h.router.Group("/telephony", h.verifySignature())
	calls.POST("/voice", h.telephonyVoice)
	calls.POST("/status", h.telephonyStatus)

	api := h.router.Group("/", h.requireOperatorKey())
	api.POST("/events", h.createEvent)
	api.GET("/events", h.listEvents)
	api.GET("/events/:id", h.getEvent)
	api.DELETE("/events/:id", h.deleteEvent)
	api.POST("/owner", h.setOwner)
	api.POST("/next_step", h.setNextStep)
	api.POST("/result", h.setResult)
	api.POST("/clear_all", h.clearAll)
	api.GET("/summary", h.summary)
	api.GET("/config", h.dashboardConfig)
	api.GET("/reports/response-times", h.getResponseTimes)
}

// healthCheck handles health check requests
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// createEvent handles POST /events
// @Summary Record an inbound event
// @Description Record a missed call, call click or form submission as a new lead
// @Tags events
// @Accept json
// @Produce json
// @Param event body dto.CreateEventRequest true "Event data"
// @Success 200 {object} dto.EventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events [post]
func (h *Handler) createEvent(c *gin.Context) {
	var req dto.CreateEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, "Invalid event request", err)
		return
	}

	event, err := h.leadService.CreateEvent(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// listEvents handles GET /events
// @Summary List leads
// @Description Newest leads first with derived triage state
// @Tags events
// @Produce json
// @Param limit query int false "Maximum rows (default 50, max 200)"
// @Success 200 {array} dto.EventResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events [get]
func (h *Handler) listEvents(c *gin.Context) {
	events, err := h.leadService.ListEvents(c.Request.Context(), parseLimit(c.Query("limit")))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

// getEvent handles GET /events/:id
// @Summary Get a lead
// @Tags events
// @Produce json
// @Param id path int true "Event id"
// @Success 200 {object} dto.EventResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /events/{id} [get]
func (h *Handler) getEvent(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}

	event, err := h.leadService.GetEvent(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// deleteEvent handles DELETE /events/:id
// @Summary Delete a lead
// @Description Unresolved leads are only deleted with confirm_unresolved=true
// @Tags events
// @Produce json
// @Param id path int true "Event id"
// @Param confirm_unresolved query bool false "Delete even without an outcome"
// @Success 200 {object} dto.OkResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /events/{id} [delete]
func (h *Handler) deleteEvent(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}

	if err := h.leadService.DeleteEvent(c.Request.Context(), id, confirmUnresolved(c)); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OkResponse{OK: true})
}

// setOwner handles POST /owner
// @Summary Assign or clear a lead's owner
// @Tags triage
// @Accept json
// @Produce json
// @Param request body dto.OwnerRequest true "Owner update"
// @Success 200 {object} dto.EventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /owner [post]
func (h *Handler) setOwner(c *gin.Context) {
	var req dto.OwnerRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, "Invalid owner request", err)
		return
	}

	event, err := h.leadService.SetOwner(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// setNextStep handles POST /next_step
// @Summary Set or clear a lead's next step
// @Tags triage
// @Accept json
// @Produce json
// @Param request body dto.NextStepRequest true "Next step update"
// @Success 200 {object} dto.EventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /next_step [post]
func (h *Handler) setNextStep(c *gin.Context) {
	var req dto.NextStepRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, "Invalid next step request", err)
		return
	}

	event, err := h.leadService.SetNextStep(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// setResult handles POST /result
// @Summary Set or clear a lead's outcome
// @Description The result key is required; null clears the outcome
// @Tags triage
// @Accept json
// @Produce json
// @Param request body dto.ResultRequest true "Outcome update"
// @Success 200 {object} dto.EventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /result [post]
func (h *Handler) setResult(c *gin.Context) {
	var req dto.ResultRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, "Invalid result request", err)
		return
	}

	event, err := h.leadService.SetResult(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// clearAll handles POST /clear_all
// @Summary Delete every lead
// @Description Refused with 409 while unresolved leads exist unless confirm_unresolved=true
// @Tags events
// @Produce json
// @Param confirm_unresolved query bool false "Delete unresolved leads too"
// @Success 200 {object} dto.OkResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /clear_all [post]
func (h *Handler) clearAll(c *gin.Context) {
	removed, err := h.leadService.ClearAll(c.Request.Context(), confirmUnresolved(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.log.Info("Leads cleared", zap.Int64("deleted", removed))

	c.JSON(http.StatusOK, dto.OkResponse{OK: true, Deleted: &removed})
}

// summary handles GET /summary
// @Summary Lead counters
// @Tags dashboard
// @Produce json
// @Success 200 {object} dto.SummaryResponse
// @Router /summary [get]
func (h *Handler) summary(c *gin.Context) {
	summary, err := h.leadService.Summary(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// dashboardConfig handles GET /config
// @Summary Dashboard options
// @Tags dashboard
// @Produce json
// @Success 200 {object} dto.ConfigResponse
// @Router /config [get]
func (h *Handler) dashboardConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.leadService.DashboardConfig())
}

// getResponseTimes handles GET /reports/response-times
// @Summary Time-to-outcome report
// @Description Aggregates outcome activity from the ledger, optionally grouped by outcome, source, owner or day
// @Tags reports
// @Produce json
// @Param from query int false "Start timestamp (Unix epoch)" example:"1735689600"
// @Param to query int false "End timestamp (Unix epoch)" example:"1738368000"
// @Param group_by query string false "Field to group by" Enums(outcome, source, owner, day)
// @Success 200 {object} dto.ResponseTimesResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /reports/response-times [get]
func (h *Handler) getResponseTimes(c *gin.Context) {
	var req dto.ResponseTimesRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, "Invalid response times request", err)
		return
	}

	response, err := h.leadService.GetResponseTimes(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.log.Info("Response times retrieved",
		zap.Int64("from", response.From),
		zap.Int64("to", response.To),
		zap.Uint64("total_count", response.TotalCount))

	c.JSON(http.StatusOK, response)
}

func (h *Handler) eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) bindError(c *gin.Context, msg string, err error) {
	h.log.Warn(msg, zap.Error(err))
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}

// writeError maps domain errors onto HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		verr     *domain.ValidationError
		conflict *domain.ConflictError
	)

	switch {
	case errors.As(err, &verr):
		h.log.Warn("Rejected request", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: verr.Error(),
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	case errors.As(err, &conflict):
		count := conflict.Unresolved
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:           "unresolved",
			Message:         conflict.Error(),
			UnresolvedCount: &count,
		})
	case errors.Is(err, domain.ErrReportingDisabled):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "reporting_disabled",
			Message: err.Error(),
		})
	default:
		h.log.Error("Request failed", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

// parseLimit falls back to the default page size when raw is absent or
// not a number. Range clamping happens in the store.
func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return repository.DefaultListLimit
	}
	return n
}

func confirmUnresolved(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm_unresolved"))
	return ok
}
