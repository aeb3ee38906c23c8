package selector

import "math/bits"

// availabilityBuckets tracks, for each piece index, how many connected
// peers currently have it, bucketed by count so the rarest non-empty
// bucket can be found without scanning every piece. Adapted from
// prxssh/rabbit's availabilityBucket: same swap-with-last O(1)
// move/remove scheme, but sized to maxPeers passed in at construction
// rather than read from a package-level config singleton, and without
// the randomized insertion position (rarest-first here always wants the
// lowest eligible index within a bucket, so randomizing insertion order
// would just cost a pass to re-sort).
type availabilityBuckets struct {
	buckets      [][]int
	avail        []int
	pos          []int
	maxAvail     int
	nonEmptyBits []uint64
}

func newAvailabilityBuckets(pieceCount, maxAvail int) *availabilityBuckets {
	if maxAvail < 1 {
		maxAvail = 1
	}

	b := &availabilityBuckets{
		maxAvail:     maxAvail,
		buckets:      make([][]int, maxAvail+1),
		avail:        make([]int, pieceCount),
		pos:          make([]int, pieceCount),
		nonEmptyBits: make([]uint64, (maxAvail>>6)+1),
	}

	b.buckets[0] = make([]int, pieceCount)
	for i := 0; i < pieceCount; i++ {
		b.buckets[0][i] = i
		b.pos[i] = i
	}
	if pieceCount > 0 {
		b.setBit(0)
	}

	return b
}

// Availability returns how many known peers currently have piece i.
func (b *availabilityBuckets) Availability(i int) int {
	return b.avail[i]
}

// Move adjusts the availability count for piece i by delta (+1 or -1),
// moving it between buckets as needed.
func (b *availabilityBuckets) Move(i, delta int) {
	oldA := b.avail[i]
	newA := oldA + delta
	if newA < 0 {
		newA = 0
	}
	if newA > b.maxAvail {
		newA = b.maxAvail
	}
	if newA == oldA {
		return
	}

	b.removeFrom(i, oldA)
	b.addTo(i, newA)
	b.avail[i] = newA
}

func (b *availabilityBuckets) removeFrom(i, avail int) {
	bucket := b.buckets[avail]
	p := b.pos[i]
	last := len(bucket) - 1

	bucket[p] = bucket[last]
	b.pos[bucket[p]] = p
	bucket = bucket[:last]
	b.buckets[avail] = bucket

	if len(bucket) == 0 {
		b.clearBit(avail)
	}
}

func (b *availabilityBuckets) addTo(i, avail int) {
	bucket := append(b.buckets[avail], i)
	b.pos[i] = len(bucket) - 1
	b.buckets[avail] = bucket
	b.setBit(avail)
}

// forEachNonEmptyBucketAscending calls fn with each bucket's piece
// indices, from the rarest (lowest availability) non-empty bucket
// upward, stopping early if fn returns true.
func (b *availabilityBuckets) forEachNonEmptyBucketAscending(fn func(pieces []int) (stop bool)) {
	for w := 0; w < len(b.nonEmptyBits); w++ {
		word := b.nonEmptyBits[w]
		for word != 0 {
			off := bits.TrailingZeros64(word)
			a := w<<6 + off
			if fn(b.buckets[a]) {
				return
			}
			word &^= 1 << uint(off)
		}
	}
}

func (b *availabilityBuckets) setBit(a int) {
	w, bit := a>>6, uint(a&63)
	b.nonEmptyBits[w] |= 1 << bit
}

func (b *availabilityBuckets) clearBit(a int) {
	w, bit := a>>6, uint(a&63)
	b.nonEmptyBits[w] &^= 1 << bit
}
