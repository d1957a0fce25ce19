package discovery

import "github.com/poiesic/codesense/query"

// Monitor provides hooks to observe a discovery request.
// Implement this interface to track intermediate steps and results.
type Monitor interface {
	Start(raw string)
	AfterParse(node query.Node)
	AfterExpansion(terms []string, err error)
	AfterRetrieval(candidates int)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                     {}
func (n *noopMonitor) AfterParse(_ query.Node)            {}
func (n *noopMonitor) AfterExpansion(_ []string, _ error) {}
func (n *noopMonitor) AfterRetrieval(_ int)               {}
func (n *noopMonitor) Finish(_ *Result)                   {}
