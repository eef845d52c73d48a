package types

import (
	"time"

	"github.com/samber/lo"
)

const (
	FILTER_DEFAULT_LIMIT = 50
	FILTER_MAX_LIMIT     = 500
)

// QueryFilter carries pagination for list endpoints
type QueryFilter struct {
	Limit  *int `json:"limit,omitempty" form:"limit" validate:"omitempty,min=1,max=500"`
	Offset *int `json:"offset,omitempty" form:"offset" validate:"omitempty,min=0"`
}

func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(FILTER_DEFAULT_LIMIT),
		Offset: lo.ToPtr(0),
	}
}

// GetLimit returns the limit value or default if not set
func (f QueryFilter) GetLimit() int {
	if f.Limit == nil || *f.Limit <= 0 {
		return FILTER_DEFAULT_LIMIT
	}
	return min(*f.Limit, FILTER_MAX_LIMIT)
}

// GetOffset returns the offset value or default if not set
func (f QueryFilter) GetOffset() int {
	if f.Offset == nil || *f.Offset < 0 {
		return 0
	}
	return *f.Offset
}

// PaymentFilter narrows payment listings. UserID scopes the listing to one payer;
// the remaining fields are the admin filters.
type PaymentFilter struct {
	*QueryFilter
	UserID      int64          `json:"-" form:"-"`
	Status      *PaymentStatus `json:"status,omitempty" form:"status"`
	Method      *PaymentMethod `json:"method,omitempty" form:"method"`
	ServiceType *string        `json:"service_type,omitempty" form:"service_type"`
	StartTime   *time.Time     `json:"start_time,omitempty" form:"start_time" time_format:"2006-01-02T15:04:05Z07:00"`
	EndTime     *time.Time     `json:"end_time,omitempty" form:"end_time" time_format:"2006-01-02T15:04:05Z07:00"`
}

func NewPaymentFilter() *PaymentFilter {
	return &PaymentFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *PaymentFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_LIMIT
	}
	return f.QueryFilter.GetLimit()
}

func (f *PaymentFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

// StatsPeriod is the lookback window of the admin statistics endpoint
type StatsPeriod string

const (
	StatsPeriodDay   StatsPeriod = "day"
	StatsPeriodWeek  StatsPeriod = "week"
	StatsPeriodMonth StatsPeriod = "month"
	StatsPeriodYear  StatsPeriod = "year"
)

// Since returns the start of the window ending at now
func (p StatsPeriod) Since(now time.Time) time.Time {
	switch p {
	case StatsPeriodDay:
		return now.AddDate(0, 0, -1)
	case StatsPeriodWeek:
		return now.AddDate(0, 0, -7)
	case StatsPeriodYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}
