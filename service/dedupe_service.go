package service

import (
	"math/bits"

	"github.com/phamduchanh/docvec-be/types"
)

// DedupeService filters near-duplicate figure regions (repeated letterhead,
// logos) across a document's pages. Pure function of the figure set: no
// I/O, deterministic, idempotent for a fixed threshold.
type DedupeService struct {
	threshold float64
}

func NewDedupeService(threshold float64) *DedupeService {
	return &DedupeService{threshold: threshold}
}

// Dedupe drops figures whose fingerprint similarity with an earlier kept
// figure meets the threshold. The first occurrence wins (lowest page index,
// then lowest region index). Returns the number of dropped figures.
func (s *DedupeService) Dedupe(pages []types.Page) int {
	var kept []uint64
	dropped := 0
	for pi := range pages {
		regions := pages[pi].Regions[:0]
		for _, region := range pages[pi].Regions {
			if region.Kind != types.RegionKindFigure {
				regions = append(regions, region)
				continue
			}
			if isDuplicate(kept, region.Fingerprint, s.threshold) {
				dropped++
				continue
			}
			kept = append(kept, region.Fingerprint)
			regions = append(regions, region)
		}
		pages[pi].Regions = regions
	}
	return dropped
}

func isDuplicate(kept []uint64, fingerprint uint64, threshold float64) bool {
	for _, k := range kept {
		if FingerprintSimilarity(k, fingerprint) >= threshold {
			return true
		}
	}
	return false
}

// FingerprintSimilarity is 1 minus the normalized Hamming distance between
// two 64-bit perceptual hashes.
func FingerprintSimilarity(a, b uint64) float64 {
	return 1 - float64(bits.OnesCount64(a^b))/64
}
