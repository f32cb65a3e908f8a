package handler

import (
	"context"
	"net/http"
	"time"

	"labbroker/internal/coordinator"
	apperrors "labbroker/pkg/errors"
	httputil "labbroker/pkg/http"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const apiPrefix = "/api/v1"

// Broker runs the coordinator workflows.
type Broker interface {
	Availability(ctx context.Context, requester model.Requester, req model.StructuredRequest) ([]model.AvailabilityResult, error)
	AvailabilityFromText(ctx context.Context, requester model.Requester, text string) ([]model.AvailabilityResult, error)
	RequestShift(ctx context.Context, requester model.Requester, req model.ShiftRequest) (*coordinator.ShiftOutcome, error)
	Book(ctx context.Context, requester model.Requester, req model.BookingRequest) (*model.Booking, error)
	Cancel(ctx context.Context, requester model.Requester, bookingID string) error
}

// Bookings exposes the scheduler operations that bypass the coordinator.
type Bookings interface {
	UpdateStudentCount(ctx context.Context, bookingID string, actor model.Requester, studentCount int) (*model.Booking, error)
	ScheduleForRange(ctx context.Context, from, to time.Time) (model.Schedule, error)
	WeekSchedule(ctx context.Context, at time.Time) (model.Schedule, error)
}

// Catalog administers the resource catalog.
type Catalog interface {
	Resources(ctx context.Context) ([]*model.Resource, error)
	CreateResource(ctx context.Context, actor model.Requester, resource *model.Resource) error
	UpdateResource(ctx context.Context, actor model.Requester, id string, update *model.ResourceUpdate) (*model.Resource, error)
	DeleteResource(ctx context.Context, actor model.Requester, id string) error
}

type TextQuery struct {
	Text string `json:"text"`
}

type StudentCountUpdate struct {
	StudentCount int `json:"student_count"`
}

type BrokerHandler struct {
	broker   Broker
	bookings Bookings
	catalog  Catalog
	log      *logger.Logger
	now      func() time.Time
}

func NewBrokerHandler(broker Broker, bookings Bookings, catalog Catalog, log *logger.Logger) *BrokerHandler {
	return &BrokerHandler{
		broker:   broker,
		bookings: bookings,
		catalog:  catalog,
		log:      log,
		now:      time.Now,
	}
}

func (h *BrokerHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST(apiPrefix+"/availability", h.Availability)
	router.POST(apiPrefix+"/availability/query", h.Query)
	router.POST(apiPrefix+"/negotiations", h.Negotiate)
	router.POST(apiPrefix+"/bookings", h.Book)
	router.PATCH(apiPrefix+"/bookings/id/:id", h.UpdateBooking)
	router.DELETE(apiPrefix+"/bookings/id/:id", h.CancelBooking)
	router.GET(apiPrefix+"/schedule", h.Schedule)
	router.GET(apiPrefix+"/resources", h.ListResources)
	router.POST(apiPrefix+"/resources", h.CreateResource)
	router.PATCH(apiPrefix+"/resources/id/:id", h.UpdateResource)
	router.DELETE(apiPrefix+"/resources/id/:id", h.DeleteResource)
}

func (h *BrokerHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requester, ok := h.requester(w, r, "Availability")
	if !ok {
		return
	}
	var req model.StructuredRequest
	if !h.decode(w, r, &req, "Availability") {
		return
	}

	results, err := h.broker.Availability(r.Context(), requester, req)
	if err != nil {
		h.writeError(w, err, "Availability")
		return
	}
	h.writeSuccess(w, results, "Availability")
}

func (h *BrokerHandler) Query(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requester, ok := h.requester(w, r, "Query")
	if !ok {
		return
	}
	var query TextQuery
	if !h.decode(w, r, &query, "Query") {
		return
	}

	results, err := h.broker.AvailabilityFromText(r.Context(), requester, query.Text)
	if err != nil {
		h.writeError(w, err, "Query")
		return
	}
	h.writeSuccess(w, results, "Query")
}

func (h *BrokerHandler) Negotiate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requester, ok := h.requester(w, r, "Negotiate")
	if !ok {
		return
	}
	var req model.ShiftRequest
	if !h.decode(w, r, &req, "Negotiate") {
		return
	}

	outcome, err := h.broker.RequestShift(r.Context(), requester, req)
	if err != nil {
		h.writeError(w, err, "Negotiate")
		return
	}
	h.writeSuccess(w, outcome, "Negotiate")
}

func (h *BrokerHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requester, ok := h.requester(w, r, "Book")
	if !ok {
		return
	}
	var req model.BookingRequest
	if !h.decode(w, r, &req, "Book") {
		return
	}

	booking, err := h.broker.Book(r.Context(), requester, req)
	if err != nil {
		h.writeError(w, err, "Book")
		return
	}
	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *BrokerHandler) UpdateBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requester, ok := h.requester(w, r, "UpdateBooking")
	if !ok {
		return
	}
	var update StudentCountUpdate
	if !h.decode(w, r, &update, "UpdateBooking") {
		return
	}

	booking, err := h.bookings.UpdateStudentCount(r.Context(), ps.ByName("id"), requester, update.StudentCount)
	if err != nil {
		h.writeError(w, err, "UpdateBooking")
		return
	}
	h.writeSuccess(w, booking, "UpdateBooking")
}

func (h *BrokerHandler) CancelBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requester, ok := h.requester(w, r, "CancelBooking")
	if !ok {
		return
	}

	if err := h.broker.Cancel(r.Context(), requester, ps.ByName("id")); err != nil {
		h.writeError(w, err, "CancelBooking")
		return
	}
	httputil.WriteNoContent(w)
}

// Schedule returns the schedule for an explicit from/to range, the week
// containing "week", or the current week.
func (h *BrokerHandler) Schedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from, to, err := httputil.TimeRange(r)
	if err != nil {
		h.writeError(w, err, "Schedule")
		return
	}

	var schedule model.Schedule
	switch {
	case !from.IsZero() && !to.IsZero():
		schedule, err = h.bookings.ScheduleForRange(r.Context(), from, to)
	case !from.IsZero() || !to.IsZero():
		err = apperrors.InvalidInput("from and to must be given together")
	default:
		at := h.now()
		if s := r.URL.Query().Get("week"); s != "" {
			if at, err = time.Parse(time.RFC3339, s); err != nil {
				err = apperrors.InvalidInput("invalid week parameter, must be RFC3339: " + s)
				break
			}
		}
		schedule, err = h.bookings.WeekSchedule(r.Context(), at)
	}
	if err != nil {
		h.writeError(w, err, "Schedule")
		return
	}
	h.writeSuccess(w, schedule, "Schedule")
}

func (h *BrokerHandler) ListResources(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resources, err := h.catalog.Resources(r.Context())
	if err != nil {
		h.writeError(w, err, "ListResources")
		return
	}
	h.writeSuccess(w, resources, "ListResources")
}

func (h *BrokerHandler) CreateResource(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requester, ok := h.requester(w, r, "CreateResource")
	if !ok {
		return
	}
	var resource model.Resource
	if !h.decode(w, r, &resource, "CreateResource") {
		return
	}

	if err := h.catalog.CreateResource(r.Context(), requester, &resource); err != nil {
		h.writeError(w, err, "CreateResource")
		return
	}
	if err := httputil.WriteCreated(w, resource); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateResource", "operation", "WriteCreated", "error", err)
	}
}

func (h *BrokerHandler) UpdateResource(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requester, ok := h.requester(w, r, "UpdateResource")
	if !ok {
		return
	}
	var update model.ResourceUpdate
	if !h.decode(w, r, &update, "UpdateResource") {
		return
	}

	resource, err := h.catalog.UpdateResource(r.Context(), requester, ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, err, "UpdateResource")
		return
	}
	h.writeSuccess(w, resource, "UpdateResource")
}

func (h *BrokerHandler) DeleteResource(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requester, ok := h.requester(w, r, "DeleteResource")
	if !ok {
		return
	}

	if err := h.catalog.DeleteResource(r.Context(), requester, ps.ByName("id")); err != nil {
		h.writeError(w, err, "DeleteResource")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *BrokerHandler) requester(w http.ResponseWriter, r *http.Request, handler string) (model.Requester, bool) {
	requester, err := httputil.Requester(r)
	if err != nil {
		h.writeError(w, err, handler)
		return model.Requester{}, false
	}
	return requester, true
}

func (h *BrokerHandler) decode(w http.ResponseWriter, r *http.Request, v any, handler string) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		h.writeError(w, err, handler)
		return false
	}
	return true
}

func (h *BrokerHandler) writeSuccess(w http.ResponseWriter, data any, handler string) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BrokerHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
