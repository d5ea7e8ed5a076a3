package broker

import "time"

// PathConfig is the subset of the broker's path configuration the core
// service manages: where frames come from and whether the broker should
// keep the path warm even with no readers attached.
type PathConfig struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	OnDemand bool   `json:"on_demand,omitempty"`
}

// PathStatus reports what the broker currently knows about a path.
type PathStatus struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Source string `json:"source"`
}

// HealthStatus is the broker's own self-reported health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type pathsListResponse struct {
	ItemCount int                      `json:"itemCount"`
	Items     []pathsListResponseEntry `json:"items"`
}

type pathsListResponseEntry struct {
	Name   string      `json:"name"`
	Ready  bool        `json:"ready"`
	Source interface{} `json:"source"`
}

func extractSourceString(source interface{}) string {
	switch v := source.(type) {
	case string:
		return v
	case map[string]interface{}:
		if t, ok := v["type"].(string); ok {
			return t
		}
	}
	return ""
}
