package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/avelychko/slotbook/internal/domain"
	"github.com/avelychko/slotbook/internal/rabbitmq"
	redisrepo "github.com/avelychko/slotbook/internal/repository/redis"
	"github.com/avelychko/slotbook/internal/service"
	"github.com/avelychko/slotbook/internal/service/booking"
	"github.com/avelychko/slotbook/internal/service/events"
	"github.com/avelychko/slotbook/internal/service/query"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	publisher *rabbitmq.Publisher,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/bookings", handleCreateBooking(svcs, idem, limiter, publisher, logger))

		api.GET("/users/email/:email/bookings", handleUserBookingsByEmail(svcs))
		api.GET("/users/:id/bookings/stats", handleUserBookingStats(svcs))

		api.POST("/events", handleCreateEvent(svcs))
		api.GET("/events", handleListEvents(svcs))
		api.GET("/events/:id", handleGetEvent(svcs))
		api.GET("/events/:id/availability", handleGetAvailability(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

type CreateBookingResponse struct {
	Booking domain.BookingDetail `json:"booking"`
}

// @Summary  Create booking (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateBookingResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} BookingFailureResponse "slot not found"
// @Failure  409 {object} BookingFailureResponse "slot full / duplicate / high demand"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	publisher *rabbitmq.Publisher,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			badRequest(c, "invalid slot_id")
			return
		}

		if limiter != nil {
			ok, _, retry, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP())
			if err != nil {
				respondErr(c, err)
				return
			}
			if !ok {
				c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
				return
			}
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(req.SlotID, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		releaseIdem := func() {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
		}

		user, err := svcs.Query.FindOrCreateUser(c.Request.Context(), req.Email, req.Name)
		if err != nil {
			releaseIdem()
			respondErr(c, err)
			return
		}

		slot, err := svcs.Events.GetSlot(c.Request.Context(), slotID)
		if err != nil {
			releaseIdem()
			respondErr(c, err)
			return
		}

		if !slot.DateTime.After(time.Now()) {
			releaseIdem()
			badRequest(c, "slot must be in the future")
			return
		}

		detail, err := svcs.Booking.Reserve(c.Request.Context(), slotID, user.ID)
		if err != nil {
			releaseIdem()

			var f *booking.Failure
			if errors.As(err, &f) {
				c.JSON(statusForFailure(f.Code), BookingFailureResponse{
					Error:      f.Message,
					Code:       string(f.Code),
					RetryCount: f.RetryCount,
				})
				return
			}

			respondErr(c, err)
			return
		}

		// The engine is done; confirmation dispatch is ours.
		if publisher != nil {
			msg := rabbitmq.BookingConfirmed{
				BookingID:  detail.Booking.ID.String(),
				Email:      detail.User.Email,
				Name:       detail.User.Name,
				EventTitle: detail.Event.Title,
				SlotTime:   detail.Slot.DateTime,
			}
			if err := publisher.Publish(rabbitmq.RoutingKeyBookingConfirmed, msg); err != nil {
				logger.Warn("failed to publish booking confirmation",
					slog.String("booking_id", msg.BookingID),
					slog.Any("error", err),
				)
			}
		}

		resp := CreateBookingResponse{Booking: *detail}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  List user's bookings by email
// @Param    email  path   string  true  "User email"
// @Param    status query  string  false "CONFIRMED | CANCELLED | WAITLISTED"
// @Param    future query  string  false "true"
// @Param    limit  query  int     false "page size"
// @Param    offset query  int     false "offset"
// @Success  200 {array}  domain.BookingDetail
// @Failure  404 {object} ErrorResponse
// @Router   /users/email/{email}/bookings [get]
func handleUserBookingsByEmail(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, err := url.PathUnescape(c.Param("email"))
		if err != nil || email == "" {
			badRequest(c, "invalid email")
			return
		}

		var status *domain.BookingStatus
		if s := c.Query("status"); s != "" {
			bs := domain.BookingStatus(s)
			switch bs {
			case domain.BookingConfirmed, domain.BookingCancelled, domain.BookingWaitlisted:
				status = &bs
			default:
				badRequest(c, "status must be CONFIRMED, CANCELLED, or WAITLISTED")
				return
			}
		}

		futureOnly := c.Query("future") == "true"
		limit := parseIntDefault(c.Query("limit"), 50)
		offset := parseIntDefault(c.Query("offset"), 0)

		bookings, err := svcs.Query.UserBookingsByEmail(
			c.Request.Context(),
			email,
			status,
			futureOnly,
			limit,
			offset,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, bookings)
	}
}

// @Summary  User booking statistics
// @Param    id  path  string  true  "User ID (uuid)"
// @Success  200 {object} map[string]any
// @Failure  404 {object} ErrorResponse
// @Router   /users/{id}/bookings/stats [get]
func handleUserBookingStats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		user, stats, err := svcs.Query.UserBookingStats(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":       user,
			"statistics": stats,
		})
	}
}

// @Summary  Create event with slots
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} domain.EventWithSlots
// @Failure  400 {object} ErrorResponse
// @Router   /events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		times, err := parseSlots(req.Slots)
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		in := make([]events.SlotInput, 0, len(req.Slots))
		for i, s := range req.Slots {
			in = append(in, events.SlotInput{
				DateTime:    times[i],
				MaxBookings: s.MaxBookings,
			})
		}

		created, err := svcs.Events.CreateEventWithSlots(
			c.Request.Context(),
			req.Title,
			req.Description,
			req.CreatedBy,
			in,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, created)
	}
}

// @Summary  List events
// @Param    future query  string  false "true"
// @Param    limit  query  int     false "page size"
// @Param    offset query  int     false "offset"
// @Success  200 {array} domain.EventWithSlots
// @Router   /events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		futureOnly := c.Query("future") == "true"
		limit := parseIntDefault(c.Query("limit"), 50)
		offset := parseIntDefault(c.Query("offset"), 0)

		list, err := svcs.Events.ListEvents(c.Request.Context(), futureOnly, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Get event with upcoming slots
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200 {object} domain.EventWithSlots
// @Failure  404 {object} ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		e, err := svcs.Events.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, e, "public, max-age=60", true)
	}
}

// @Summary  Per-slot availability counters
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200 {array} domain.SlotAvailability
// @Failure  404 {object} ErrorResponse
// @Router   /events/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		avail, err := svcs.Events.Availability(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, avail, "public, max-age=15", true)
	}
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func statusForFailure(code booking.Code) int {
	switch code {
	case booking.CodeSlotNotFound:
		return http.StatusNotFound
	case booking.CodeSlotFull, booking.CodeDuplicateBooking, booking.CodeConflictExhausted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// events service
	case errors.Is(err, events.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, events.ErrSlotNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "slot not found"})
	case errors.Is(err, events.ErrEventConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event conflict"})
	// query service
	case errors.Is(err, query.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
