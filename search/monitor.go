package search

import "github.com/poiesic/recall/core"

// AssemblyMonitor provides hooks to observe context assembly.
// Implement this interface to track intermediate sections during assembly.
type AssemblyMonitor interface {
	Start(query string)
	AfterRecent(msgs []core.ChatMessage)
	AfterHistorySearch(hits []core.SearchResult)
	AfterDocumentSearch(hits []core.SearchResult)
	Finish(bundle *core.ContextBundle)
}

// noopMonitor is a no-op implementation of AssemblyMonitor
type noopMonitor struct{}

var _ AssemblyMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                           {}
func (n *noopMonitor) AfterRecent(_ []core.ChatMessage)         {}
func (n *noopMonitor) AfterHistorySearch(_ []core.SearchResult) {}
func (n *noopMonitor) AfterDocumentSearch(_ []core.SearchResult) {}
func (n *noopMonitor) Finish(_ *core.ContextBundle)             {}
