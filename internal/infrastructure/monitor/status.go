package monitor

import "time"

type ServiceStatus struct {
	Online bool   `json:"online"`
	Error  string `json:"error,omitempty"`
}

type Status struct {
	Services  map[string]ServiceStatus `json:"services"`
	LastCheck time.Time                `json:"last_check"`
}

// Online is false until the first probe round and whenever a service is down.
func (s Status) Online() bool {
	if s.LastCheck.IsZero() {
		return false
	}
	for _, svc := range s.Services {
		if !svc.Online {
			return false
		}
	}
	return true
}
