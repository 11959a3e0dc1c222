// Package partition splits listing pages into per-worker slices.
package partition

import "s3aclcopy/pkg/listing"

// Split divides a page into up to n contiguous, non-overlapping slices
// of ⌈len(page)/n⌉ keys each, covering the page exactly once. An empty
// page produces no slices; n is clamped to a minimum of 1.
func Split(page listing.Page, n int) []listing.Page {
	if len(page) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}

	size := (len(page) + n - 1) / n

	slices := make([]listing.Page, 0, n)
	for start := 0; start < len(page); start += size {
		end := start + size
		if end > len(page) {
			end = len(page)
		}
		slices = append(slices, page[start:end])
	}
	return slices
}
