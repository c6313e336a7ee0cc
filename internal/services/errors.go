package services

import "errors"

var (
	// ErrDuplicatePeriod is returned when a processed interest period already
	// exists for an overlapping calendar month.
	ErrDuplicatePeriod = errors.New("interest period already marked processed for this month")

	// ErrNoEmployeeActor is returned when no system actor is configured and
	// no employee exists to attribute interest credits to.
	ErrNoEmployeeActor = errors.New("no employee available to attribute interest credits")
)
