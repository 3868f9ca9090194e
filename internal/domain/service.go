// Package domain defines the business logic of the workout draft and sync engine.
package domain

import (
	"log"
	"time"
)

// Service orchestrates the draft registry, the completion transaction and workout reads.
type Service struct {
	drafts    DraftRepository
	workouts  WorkoutRepository
	exercises ExerciseRepository
	draftTTL  time.Duration
	now       func() time.Time
	logger    *log.Logger
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger used to report skipped batch items.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source. Tests use it to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithDraftTTL overrides DefaultDraftTTL.
func WithDraftTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.draftTTL = ttl
		}
	}
}

// NewService constructs a Service.
func NewService(drafts DraftRepository, workouts WorkoutRepository, exercises ExerciseRepository, opts ...Option) *Service {
	s := &Service{
		drafts:    drafts,
		workouts:  workouts,
		exercises: exercises,
		draftTTL:  DefaultDraftTTL,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log.New(log.Writer(), "[sync] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
