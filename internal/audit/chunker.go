package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultMaxChunkSize is the serialized-size budget used when none is configured
const DefaultMaxChunkSize = 8000

// ChunkReport splits a report's audits into groups whose serialized size stays
// within maxSize where possible. Packing is greedy and order-preserving: a new
// chunk starts only when the running chunk is non-empty and the next audit
// would push it over budget. An audit larger than the budget gets a chunk of
// its own. Every chunk carries the report's metadata.
func ChunkReport(report *Report, maxSize int) ([]Chunk, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, maxSize)
	}

	chunks := make([]Chunk, 0)
	if report == nil {
		return chunks, nil
	}

	current := Chunk{Metadata: report.Metadata}
	currentSize := 0

	for _, a := range report.Audits {
		size, err := SerializedSize(a)
		if err != nil {
			return nil, err
		}

		if currentSize+size > maxSize && len(current.Audits) > 0 {
			chunks = append(chunks, current)
			current = Chunk{Metadata: report.Metadata}
			currentSize = 0
		}

		current.Audits = append(current.Audits, a)
		currentSize += size
	}

	if len(current.Audits) > 0 {
		chunks = append(chunks, current)
	}

	return chunks, nil
}

// SerializedSize is the length in bytes of the audit entry's compact JSON form
func SerializedSize(a Audit) (int, error) {
	raw, err := a.rawJSON()
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return 0, fmt.Errorf("%w: audit %s: %v", ErrInvalidReportFormat, a.ID, err)
	}
	return buf.Len(), nil
}
