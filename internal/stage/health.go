package stage

// Health summarizes the readiness of a pipeline stage's collaborator.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(name Name) Health {
	return Health{Name: string(name), Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name Name, detail string) Health {
	return Health{Name: string(name), Ready: false, Detail: detail}
}
