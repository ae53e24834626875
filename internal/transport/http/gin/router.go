package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ritams/smashit-sub000/internal/availability"
	"github.com/ritams/smashit-sub000/internal/dispatch"
	"github.com/ritams/smashit-sub000/internal/domain"
	redisrepo "github.com/ritams/smashit-sub000/internal/repository/redis"
	"github.com/ritams/smashit-sub000/internal/service"
	"github.com/ritams/smashit-sub000/internal/service/admission"
	"github.com/ritams/smashit-sub000/internal/service/directory"
	"github.com/ritams/smashit-sub000/internal/service/query"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
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

	// Public API
	r.GET("/spaces/:id", handleGetSpace(svcs))
	r.GET("/spaces/:id/availability", handleGetAvailability(svcs))

	r.POST("/spaces/:id/bookings", handleCreateBooking(svcs, idem, limiter))
	r.GET("/bookings/:id", handleGetBooking(svcs))
	r.DELETE("/bookings/:id", handleCancelBooking(svcs))

	// Admin API
	// TODO: add admin middleware once the identity service exposes org roles
	admin := r.Group("/admin")
	{
		admin.POST("/spaces", handleCreateSpace(svcs))
		admin.PUT("/spaces/:id/rules", handleUpdateRules(svcs))
		admin.PUT("/spaces/:id/capacity", handleResizeSpace(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get space with rules and slots
// @Param    id  path  int  true  "Space ID"
// @Success  200  {object}  domain.SpaceWithRules
// @Failure  404  {object}  ErrorResponse
// @Router   /spaces/{id} [get]
func handleGetSpace(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		spaceID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		sp, err := svcs.Query.GetSpace(c.Request.Context(), spaceID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, sp, "public, max-age=60", true)
	}
}

// @Summary  Get the slot-window availability grid for a day
// @Param    id    path   int     true  "Space ID"
// @Param    date  query  string  true  "Day (YYYY-MM-DD)"
// @Param    tz    query  string  false "IANA timezone, defaults to the space's own"
// @Success  200  {array}   domain.SlotWindow
// @Failure  404  {object}  ErrorResponse
// @Router   /spaces/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		spaceID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		date, err := availability.ParseDate(c.Query("date"))
		if err != nil {
			badRequest(c, "invalid date (want YYYY-MM-DD)")
			return
		}
		grid, err := svcs.Query.Availability(
			c.Request.Context(),
			spaceID,
			date,
			c.Query("tz"),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s; the grid may lag admissions by one refresh
		writeJSONWithCache(c, http.StatusOK, grid, "public, max-age=15", true)
	}
}

// @Summary  Create booking (idempotent)
// @Param    id  path  int  true  "Space ID"
// @Param    req body  CreateBookingRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} BookingResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "slot already booked / idem in progress"
// @Failure  422 {object} ErrorResponse "rule violation"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  504 {object} ErrorResponse "queued, outcome unknown"
// @Router   /spaces/{id}/bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		spaceID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		ends, err := parseRFC3339(req.EndsAt)
		if err != nil {
			badRequest(c, "invalid ends_at (RFC3339)")
			return
		}

		if limiter != nil {
			ok, _, retry, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP())
			if err == nil && !ok {
				c.Header("Retry-After", strconv.Itoa(int(retry/time.Second)+1))
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
				return
			}
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(spaceID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		booking, err := svcs.Admission.Admit(c.Request.Context(), admission.AdmitRequest{
			SpaceID:       spaceID,
			UserID:        req.UserID,
			UserName:      req.UserName,
			Start:         starts,
			End:           ends,
			SlotID:        req.SlotID,
			SlotIndex:     req.SlotIndex,
			Participants:  req.Participants,
			Notes:         req.Notes,
			AdminOverride: req.AdminOverride,
		})
		if err != nil {
			// an unknown-outcome timeout keeps the idempotency lock: the
			// queued admission may still commit and a retry must not double-book
			if idemStorageKey != "" && idem != nil && !errors.Is(err, dispatch.ErrWaitTimeout) {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := toBookingResponse(booking)

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Get booking
// @Param    id      path   string  true  "Booking ID (uuid)"
// @Param    org_id  query  int     true  "Org ID"
// @Success  200 {object} BookingResponse
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid booking id")
			return
		}
		orgID, err := strconv.ParseInt(c.Query("org_id"), 10, 64)
		if err != nil {
			badRequest(c, "invalid org_id")
			return
		}
		b, err := svcs.Query.GetBooking(c.Request.Context(), orgID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toBookingResponse(b))
	}
}

// @Summary  Cancel booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  CancelBookingRequest true "payload"
// @Success  200 {object} BookingResponse
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already cancelled"
// @Router   /bookings/{id} [delete]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid booking id")
			return
		}
		var req CancelBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		b, err := svcs.Admission.Cancel(c.Request.Context(), admission.CancelRequest{
			OrgID:         req.OrgID,
			BookingID:     id,
			CallerUserID:  req.UserID,
			CallerIsAdmin: req.IsAdmin,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toBookingResponse(b))
	}
}

// @Summary  Create space with slots and rules
// @Param    req body  CreateSpaceRequest true "payload"
// @Success  201 {object} CreateSpaceResponse
// @Failure  409 {object} ErrorResponse
// @Router   /admin/spaces [post]
func handleCreateSpace(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSpaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		space := domain.Space{
			OrgID:     req.OrgID,
			Name:      req.Name,
			SpaceType: req.SpaceType,
			Capacity:  req.Capacity,
			Timezone:  req.Timezone,
		}
		rules := req.Rules.toDomain(0)
		id, err := svcs.Directory.CreateSpace(c.Request.Context(), &space, &rules)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateSpaceResponse{SpaceID: id})
	}
}

// @Summary  Replace a space's booking rules
// @Param    id  path  int  true  "Space ID"
// @Param    req body  UpdateRulesRequest true "payload"
// @Success  200 {object} map[string]string
// @Failure  404 {object} ErrorResponse
// @Router   /admin/spaces/{id}/rules [put]
func handleUpdateRules(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		spaceID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req UpdateRulesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		rules := req.Rules.toDomain(spaceID)
		if err := svcs.Directory.UpdateRules(c.Request.Context(), req.OrgID, &rules); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	}
}

// @Summary  Resize a space (shrinking retires slots)
// @Param    id  path  int  true  "Space ID"
// @Param    req body  ResizeSpaceRequest true "payload"
// @Success  200 {object} map[string]string
// @Failure  404 {object} ErrorResponse
// @Router   /admin/spaces/{id}/capacity [put]
func handleResizeSpace(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		spaceID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ResizeSpaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		orgID, _ := strconv.ParseInt(c.Query("org_id"), 10, 64)
		if err := svcs.Directory.Resize(c.Request.Context(), orgID, spaceID, req.Capacity); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "resized"})
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func rejectionStatus(code admission.Code) int {
	switch code {
	case admission.CodeSpaceNotFound, admission.CodeSlotNotFound, admission.CodeNotFound:
		return http.StatusNotFound
	case admission.CodeSlotTaken, admission.CodeAlreadyCancelled:
		return http.StatusConflict
	case admission.CodeForbidden:
		return http.StatusForbidden
	default:
		// slot mismatch and every rule violation
		return http.StatusUnprocessableEntity
	}
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	// admission rejections carry their own code
	var rej *admission.Rejection
	if errors.As(err, &rej) {
		c.JSON(rejectionStatus(rej.Code), ErrorResponse{
			Error: rej.Reason,
			Code:  string(rej.Code),
		})
		return
	}

	switch {
	case errors.Is(err, admission.ErrInvalidInterval):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, dispatch.ErrWaitTimeout):
		// unknown outcome: the caller should re-query booking state
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error: "request queued but not resolved in time; re-query before retrying",
		})
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrClosed):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "space queue is busy"})
	// query service
	case errors.Is(err, query.ErrSpaceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "space not found"})
	case errors.Is(err, query.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	case errors.Is(err, query.ErrBadTimezone):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown timezone"})
	// directory service
	case errors.Is(err, directory.ErrSpaceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "space not found"})
	case errors.Is(err, directory.ErrSpaceExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "space already exists"})
	case errors.Is(err, directory.ErrBadCapacity), errors.Is(err, directory.ErrBadRules):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
