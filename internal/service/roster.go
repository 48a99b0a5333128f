// internal/service/roster.go
package service

import "github.com/memberhub/campaign-engine/internal/model"

// Unsent returns the indexes of all unprocessed roster records in original
// order. Indexes, not copies, so outcomes can be folded back in place.
func Unsent(roster []model.Recipient) []int {
	var unsent []int
	for i := range roster {
		if !roster[i].Sent {
			unsent = append(unsent, i)
		}
	}
	return unsent
}

// NextBatch returns the longest-standing unprocessed prefix of the roster,
// bounded by batchSize.
func NextBatch(roster []model.Recipient, batchSize int) []int {
	unsent := Unsent(roster)
	if len(unsent) > batchSize {
		unsent = unsent[:batchSize]
	}
	return unsent
}

// MarkProcessed flips the Sent flag for every index in batch, regardless of
// delivery outcome. Applying the same batch twice is a no-op.
func MarkProcessed(roster []model.Recipient, batch []int) {
	for _, i := range batch {
		roster[i].Sent = true
	}
}
