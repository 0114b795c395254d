package channel

import "github.com/gpt-load-telemetry/channel-sdk/internal/models"

// filterChain asks every registered delegate whether a record should be
// vetoed before persistence. It operates on a pre-taken snapshot so it
// shares the same reentrancy discipline as the rest of delegate dispatch.
type filterChain struct{}

// shouldFilter returns true if any delegate in snapshot vetoes record.
// Evaluation stops at the first veto; later delegates are not consulted,
// matching "if any returns true" in the enqueue contract.
func (filterChain) shouldFilter(snapshot []Delegate, record *models.Record) bool {
	for _, d := range snapshot {
		if d.ShouldFilterLog(record) {
			return true
		}
	}
	return false
}
