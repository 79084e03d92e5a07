package domain

// ============================================================
// Health & ops API responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// BootstrapStats is returned by GET /v1/ops/bootstrap.
type BootstrapStats struct {
	Builds          int64   `json:"builds"`
	Repaired        int64   `json:"repaired"`
	Unrecoverable   int64   `json:"unrecoverable"`
	BackendErrors   int64   `json:"backendErrors"`
	RepairCalls     int64   `json:"repairCalls"`
	GuardRedirects  int64   `json:"guardRedirects"`
	ActiveDevices   int     `json:"activeDevices"`
	RepairSuccessPc float64 `json:"repairSuccessPct"`
}

// Diagnostic is rendered when a handler panics.
type Diagnostic struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Recovery  string `json:"recovery"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
}
