package vecmath

import (
	"fmt"
	"strings"
)

// Metric selects how two vectors are compared.
type Metric int

const (
	MetricCosine Metric = iota
	MetricEuclidean
	MetricManhattan
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	case MetricManhattan:
		return "manhattan"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric maps a metric name to a Metric. Matching is case-insensitive.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cosine":
		return MetricCosine, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "manhattan", "l1":
		return MetricManhattan, nil
	case "dot":
		return MetricDot, nil
	}
	return MetricCosine, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(b []byte) error {
	parsed, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// IsDistance reports whether smaller raw values mean more similar.
func (m Metric) IsDistance() bool {
	return m == MetricEuclidean || m == MetricManhattan
}

// Score compares a and b so that larger is always more similar.
// Distance metrics are mapped through 1/(1+d) into (0, 1].
func Score(m Metric, a, b []float32) (float64, error) {
	switch m {
	case MetricCosine:
		return Cosine(a, b)
	case MetricDot:
		return Dot(a, b)
	case MetricEuclidean:
		d, err := Euclidean(a, b)
		if err != nil {
			return 0, err
		}
		return 1 / (1 + d), nil
	case MetricManhattan:
		d, err := Manhattan(a, b)
		if err != nil {
			return 0, err
		}
		return 1 / (1 + d), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownMetric, int(m))
	}
}
