package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phamduchanh/docvec-be/types"
)

func figure(fingerprint uint64) types.Region {
	return types.Region{Kind: types.RegionKindFigure, Fingerprint: fingerprint}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	pages := []types.Page{
		{Index: 0, Regions: []types.Region{figure(0xFFFF)}},
		{Index: 1, Regions: []types.Region{figure(0xFFFF)}},
		{Index: 2, Regions: []types.Region{figure(0xFFFF)}},
	}

	dropped := NewDedupeService(0.8).Dedupe(pages)

	assert.Equal(t, 2, dropped)
	assert.Len(t, pages[0].Regions, 1)
	assert.Empty(t, pages[1].Regions)
	assert.Empty(t, pages[2].Regions)
}

func TestDedupeNearDuplicateWithinThreshold(t *testing.T) {
	// Differs in 4 of 64 bits: similarity 60/64 = 0.9375.
	a := uint64(0xFFFFFFFFFFFFFFFF)
	b := uint64(0xFFFFFFFFFFFFFFF0)
	pages := []types.Page{
		{Index: 0, Regions: []types.Region{figure(a), figure(b)}},
	}

	dropped := NewDedupeService(0.9).Dedupe(pages)

	assert.Equal(t, 1, dropped)
	assert.Len(t, pages[0].Regions, 1)
	assert.Equal(t, a, pages[0].Regions[0].Fingerprint)
}

func TestDedupeDistinctFiguresSurvive(t *testing.T) {
	pages := []types.Page{
		{Index: 0, Regions: []types.Region{figure(0x0), figure(0xFFFFFFFFFFFFFFFF)}},
	}

	dropped := NewDedupeService(0.8).Dedupe(pages)

	assert.Equal(t, 0, dropped)
	assert.Len(t, pages[0].Regions, 2)
}

func TestDedupeLeavesNonFigureRegionsAlone(t *testing.T) {
	pages := []types.Page{
		{Index: 0, Regions: []types.Region{
			{Kind: types.RegionKindText, Text: "hello"},
			figure(0xAAAA),
			{Kind: types.RegionKindTable, Cells: [][]string{{"a"}}},
		}},
		{Index: 1, Regions: []types.Region{
			{Kind: types.RegionKindText, Text: "world"},
			figure(0xAAAA),
		}},
	}

	dropped := NewDedupeService(0.8).Dedupe(pages)

	assert.Equal(t, 1, dropped)
	assert.Len(t, pages[0].Regions, 3)
	assert.Len(t, pages[1].Regions, 1)
	assert.Equal(t, types.RegionKindText, pages[1].Regions[0].Kind)
}

func TestDedupeIdempotent(t *testing.T) {
	pages := []types.Page{
		{Index: 0, Regions: []types.Region{figure(0x1234), figure(0x1234), figure(0xFF00)}},
	}

	svc := NewDedupeService(0.8)
	first := svc.Dedupe(pages)
	second := svc.Dedupe(pages)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Len(t, pages[0].Regions, 2)
}

func TestFingerprintSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, FingerprintSimilarity(0xABCD, 0xABCD))
	assert.Equal(t, 0.0, FingerprintSimilarity(0, ^uint64(0)))
	assert.InDelta(t, 0.9375, FingerprintSimilarity(0xFFFFFFFFFFFFFFFF, 0xFFFFFFFFFFFFFFF0), 1e-9)
}
