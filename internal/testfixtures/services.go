package testfixtures

import (
	"time"

	"github.com/example/raid-scheduler/internal/schedule"
)

// ServiceFactory assists tests with constructing schedule services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// SeriesServiceDeps captures dependencies for constructing a series service.
type SeriesServiceDeps struct {
	Occurrences schedule.OccurrenceStore
	Members     schedule.MemberDirectory
	Dashboards  schedule.DashboardInvalidator
	IDGenerator func() string
	Now         func() time.Time
}

// NewSeriesService builds a series service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewSeriesService(deps SeriesServiceDeps) *schedule.SeriesService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return schedule.NewSeriesService(
		deps.Occurrences,
		deps.Members,
		deps.Dashboards,
		idGen,
		now,
	)
}

// AttendanceServiceDeps captures dependencies for constructing an attendance
// service.
type AttendanceServiceDeps struct {
	Attendance  schedule.AttendanceStore
	Occurrences schedule.OccurrenceStore
	Now         func() time.Time
}

// NewAttendanceService builds an attendance service using the supplied
// dependencies.
func (f *ServiceFactory) NewAttendanceService(deps AttendanceServiceDeps) *schedule.AttendanceService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return schedule.NewAttendanceService(
		deps.Attendance,
		deps.Occurrences,
		now,
	)
}

// DashboardServiceDeps captures dependencies for constructing a dashboard
// service.
type DashboardServiceDeps struct {
	Occurrences   schedule.OccurrenceStore
	Attendance    schedule.AttendanceStore
	Members       schedule.MemberDirectory
	CacheTTL      time.Duration
	MaxWindowDays int
	Now           func() time.Time
}

// NewDashboardService builds a dashboard service using the supplied
// dependencies.
func (f *ServiceFactory) NewDashboardService(deps DashboardServiceDeps) *schedule.DashboardService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return schedule.NewDashboardService(
		deps.Occurrences,
		deps.Attendance,
		deps.Members,
		deps.CacheTTL,
		deps.MaxWindowDays,
		now,
	)
}
