package ulid

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedIDs(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"run", RunID, PrefixRun},
		{"issue", IssueID, PrefixIssue},
		{"document", DocumentID, PrefixDocument},
		{"request", RequestID, PrefixRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.gen()
			assert.True(t, strings.HasPrefix(id, tt.prefix+PrefixSeparator))
			assert.True(t, Validate(id))

			parsed, err := Parse(id)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, parsed.Prefix())
			assert.Equal(t, id, parsed.String())
		})
	}
}

func TestMonotonic(t *testing.T) {
	now := time.Now()
	a := NewWithTime(now)
	b := NewWithTime(now)
	assert.Less(t, a.ULID.String(), b.ULID.String())
}

func TestParseInvalid(t *testing.T) {
	assert.False(t, Validate("run-not-a-ulid"))
	assert.False(t, Validate(""))
}

func TestJSONAndScan(t *testing.T) {
	id := GenerateWithPrefix(PrefixRun)

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ULID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id.String(), decoded.String())

	var scanned ULID
	require.NoError(t, scanned.Scan([]byte(id.String())))
	assert.Equal(t, id.String(), scanned.String())
	assert.Error(t, scanned.Scan(42))

	value, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), value)
}

func TestTime(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	id := NewWithTime(ts)
	assert.True(t, id.Time().Equal(ts))
}
