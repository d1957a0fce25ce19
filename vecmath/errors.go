package vecmath

import "errors"

var (
	// ErrUnknownMetric is returned for a metric name or value that is not supported.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrNegativeK is returned when KNearest is asked for fewer than zero neighbors.
	ErrNegativeK = errors.New("k must be non-negative")
)
