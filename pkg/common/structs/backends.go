package structs

import "github.com/xzinc/IPL/pkg/types"

// BackendsResponse lists every backend descriptor and the active one
type BackendsResponse struct {
	Active   string                    `json:"active"`
	Backends []types.BackendDescriptor `json:"backends"`
}

// CheckResponse is the outcome of an on-demand health check of all backends
type CheckResponse struct {
	Results map[string]types.HealthStatus `json:"results"`
}

// SwitchResponse confirms an operator switch
type SwitchResponse struct {
	Active string `json:"active"`
}

func (b *BackendsResponse) GetActive() (types.BackendDescriptor, bool) {
	for _, d := range b.Backends {
		if d.Name == b.Active {
			return d, true
		}
	}
	return types.BackendDescriptor{}, false
}
