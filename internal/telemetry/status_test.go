package telemetry

import (
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	const (
		warning  = 0.5
		critical = 0.7
	)

	tests := []struct {
		name  string
		value float64
		want  Status
	}{
		{"WellBelowWarning", 0.1, StatusNominal},
		{"JustBelowWarning", warning - 1e-9, StatusNominal},
		{"ExactlyWarning", warning, StatusWarning},
		{"BetweenThresholds", 0.6, StatusWarning},
		{"JustBelowCritical", critical - 1e-9, StatusWarning},
		{"ExactlyCritical", critical, StatusCritical},
		{"AboveCritical", 0.95, StatusCritical},
		{"NegativeValue", -3.2, StatusNominal},
		{"PositiveInfinity", math.Inf(1), StatusCritical},
		{"NegativeInfinity", math.Inf(-1), StatusNominal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.value, warning, critical); got != tt.want {
				t.Errorf("Classify(%v, %v, %v) = %v, want %v", tt.value, warning, critical, got, tt.want)
			}
		})
	}

	t.Run("EqualThresholds", func(t *testing.T) {
		// warning == critical: the boundary belongs to the higher severity
		if got := Classify(0.5, 0.5, 0.5); got != StatusCritical {
			t.Errorf("Expected critical when value equals both thresholds, got %v", got)
		}
	})
}
