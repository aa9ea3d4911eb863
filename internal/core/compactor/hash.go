package compactor

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/wilbur182/recap/internal/core/model"
)

// inputHashForRollup hashes the scale tag plus the concatenation of every
// child's (bucket_key, outcome) pair, in order. Staleness detection compares
// this against the parent summary's stored input_hash.
func inputHashForRollup(scale model.SummaryScale, children []ChildSummary) uint64 {
	h := xxhash.New()
	h.WriteString(string(scale))
	for _, c := range children {
		h.Write([]byte{0})
		h.WriteString(c.BucketKey)
		h.Write([]byte{0})
		h.WriteString(c.Outcome)
	}
	return h.Sum64()
}

// inputHashForHour hashes the raw inputs an hourly summary was built from, so
// a late-arriving message in an already-snapshotted hour (replace-not-merge
// on re-ingestion) triggers a rebuild.
func inputHashForHour(buckets []model.HourlyBucket) uint64 {
	h := xxhash.New()
	h.WriteString(string(model.ScaleHourly))
	for _, b := range buckets {
		h.Write([]byte{0})
		h.WriteString(b.SessionID)
		h.Write([]byte{0})
		h.WriteString(strconv.Itoa(b.MessageCount))
		h.Write([]byte{0})
		h.WriteString(strconv.Itoa(b.RawByteSize))
	}
	return h.Sum64()
}
