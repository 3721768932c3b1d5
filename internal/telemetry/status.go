package telemetry

// Status classifies a scalar signal against two ordered thresholds
type Status string

const (
	StatusNominal  Status = "nominal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Classify maps a value onto a status given warning and critical thresholds.
// Boundaries are inclusive toward the higher severity: a value exactly at
// critical is critical, exactly at warning is warning. Callers are expected
// to have validated warning <= critical (config validation rejects the
// inverse at startup).
func Classify(value, warning, critical float64) Status {
	switch {
	case value >= critical:
		return StatusCritical
	case value >= warning:
		return StatusWarning
	default:
		return StatusNominal
	}
}
