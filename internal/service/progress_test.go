package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"true-north/internal/model"
)

func TestComputeProgressEmpty(t *testing.T) {
	require.Equal(t, 0.0, ComputeProgress(nil, time.Now()))
	require.Equal(t, 0.0, ComputeProgress([]model.UserChallenge{}, time.Now()))
}

func TestComputeProgressCountsCompletedAsOf(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	entries := []model.UserChallenge{
		{ID: "a", CompletedAt: &past},
		{ID: "b", CompletedAt: &now},
		{ID: "c", CompletedAt: &future},
		{ID: "d"},
	}

	require.Equal(t, 0.5, ComputeProgress(entries, now))

	p := Summarize(entries, now)
	require.Equal(t, 2, p.Completed)
	require.Equal(t, 4, p.Total)
	require.Equal(t, 50, p.Percent())
}

func TestComputeProgressExactRatio(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	done := now.Add(-time.Minute)
	entries := []model.UserChallenge{{CompletedAt: &done}, {}, {}}

	require.Equal(t, 1.0/3.0, ComputeProgress(entries, now))
	require.Equal(t, 33, Summarize(entries, now).Percent())
}
