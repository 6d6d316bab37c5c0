package service

import (
	"math"
	"time"

	"true-north/internal/model"
)

// ComputeProgress returns the share of entries completed at or before asOf.
// An empty list has zero progress.
func ComputeProgress(entries []model.UserChallenge, asOf time.Time) float64 {
	return Summarize(entries, asOf).Ratio
}

// Progress is a completion tally for rendering.
type Progress struct {
	Completed int
	Total     int
	Ratio     float64
}

// Summarize counts completed entries; see ComputeProgress.
func Summarize(entries []model.UserChallenge, asOf time.Time) Progress {
	p := Progress{Total: len(entries)}
	if p.Total == 0 {
		return p
	}
	for _, entry := range entries {
		if entry.CompletedBy(asOf) {
			p.Completed++
		}
	}
	p.Ratio = float64(p.Completed) / float64(p.Total)
	return p
}

// Percent rounds the ratio to a whole percentage.
func (p Progress) Percent() int {
	return int(math.Round(p.Ratio * 100))
}
