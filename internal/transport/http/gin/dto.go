package httpgin

import (
	"time"

	"github.com/google/uuid"
	"github.com/ritams/smashit-sub000/internal/domain"
)

type CreateBookingRequest struct {
	UserID        int64   `json:"user_id" binding:"required"`
	UserName      string  `json:"user_name" binding:"required"`
	StartsAt      string  `json:"starts_at" binding:"required"`
	EndsAt        string  `json:"ends_at" binding:"required"`
	SlotID        *int64  `json:"slot_id"`
	SlotIndex     *int    `json:"slot_index"`
	Participants  []int64 `json:"participants"`
	Notes         string  `json:"notes"`
	AdminOverride bool    `json:"admin_override"`
}

type CancelBookingRequest struct {
	OrgID   int64 `json:"org_id" binding:"required"`
	UserID  int64 `json:"user_id" binding:"required"`
	IsAdmin bool  `json:"is_admin"`
}

type RulesInput struct {
	SlotDurationMin   int  `json:"slot_duration_min" binding:"required,gt=0"`
	OpenMinutes       int  `json:"open_minutes" binding:"gte=0,lt=1440"`
	CloseMinutes      int  `json:"close_minutes" binding:"gte=0,lte=1440"`
	MaxAdvanceDays    int  `json:"max_advance_days" binding:"gte=0"`
	MaxDurationMin    int  `json:"max_duration_min" binding:"required,gt=0"`
	BufferMin         int  `json:"buffer_min" binding:"gte=0"`
	MaxPerUserPerDay  *int `json:"max_per_user_per_day"`
	MaxPerSpacePerDay *int `json:"max_per_space_per_day"`
	MaxActivePerUser  *int `json:"max_active_per_user"`
}

type CreateSpaceRequest struct {
	OrgID     int64      `json:"org_id" binding:"required"`
	Name      string     `json:"name" binding:"required"`
	SpaceType string     `json:"space_type" binding:"required"`
	Capacity  int        `json:"capacity" binding:"required,gt=0"`
	Timezone  string     `json:"timezone"`
	Rules     RulesInput `json:"rules" binding:"required"`
}

type ResizeSpaceRequest struct {
	Capacity int `json:"capacity" binding:"required,gt=0"`
}

type UpdateRulesRequest struct {
	OrgID int64      `json:"org_id" binding:"required"`
	Rules RulesInput `json:"rules" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type BookingResponse struct {
	ID           uuid.UUID  `json:"id"`
	OrgID        int64      `json:"org_id"`
	SpaceID      int64      `json:"space_id"`
	SlotID       *int64     `json:"slot_id,omitempty"`
	SlotIndex    *int       `json:"slot_index,omitempty"`
	UserID       int64      `json:"user_id"`
	UserName     string     `json:"user_name"`
	StartsAt     time.Time  `json:"starts_at"`
	EndsAt       time.Time  `json:"ends_at"`
	Status       string     `json:"status"`
	Participants []int64    `json:"participants,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:           b.ID,
		OrgID:        b.OrgID,
		SpaceID:      b.SpaceID,
		SlotID:       b.SlotID,
		SlotIndex:    b.SlotIndex,
		UserID:       b.UserID,
		UserName:     b.UserName,
		StartsAt:     b.StartsAt,
		EndsAt:       b.EndsAt,
		Status:       string(b.Status),
		Participants: b.Participants,
		Notes:        b.Notes,
		CreatedAt:    b.CreatedAt,
		CancelledAt:  b.CancelledAt,
	}
}

type CreateSpaceResponse struct {
	SpaceID int64 `json:"space_id"`
}

func (r RulesInput) toDomain(spaceID int64) domain.BookingRules {
	return domain.BookingRules{
		SpaceID:           spaceID,
		SlotDurationMin:   r.SlotDurationMin,
		OpenMinutes:       r.OpenMinutes,
		CloseMinutes:      r.CloseMinutes,
		MaxAdvanceDays:    r.MaxAdvanceDays,
		MaxDurationMin:    r.MaxDurationMin,
		BufferMin:         r.BufferMin,
		MaxPerUserPerDay:  r.MaxPerUserPerDay,
		MaxPerSpacePerDay: r.MaxPerSpacePerDay,
		MaxActivePerUser:  r.MaxActivePerUser,
	}
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
