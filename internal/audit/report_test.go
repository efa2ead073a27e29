package audit

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReport(t *testing.T) {
	t.Run("keeps audit order and metadata bytes", func(t *testing.T) {
		doc := `{"lighthouseVersion":"12.0.0","metadata":{"b":1, "a":2},"audits":{"zeta":{"score":0.3},"alpha":{"score":1},"mid":"odd"}}`

		report, err := ParseReport([]byte(doc))

		require.NoError(t, err)
		assert.Equal(t, []string{"zeta", "alpha", "mid"}, report.AuditIDs())
		assert.Equal(t, `{"b":1, "a":2}`, string(report.Metadata))
		assert.Equal(t, `"odd"`, string(report.Audits[2].Raw))
		assert.Empty(t, report.Audits[2].Entry, "non-object entries decode as empty")
	})

	t.Run("repeated audit id replaces in place", func(t *testing.T) {
		report, err := ParseReport([]byte(`{"audits":{"a":{"score":0.1},"b":{},"a":{"score":0.9}}}`))

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, report.AuditIDs())
		assert.Equal(t, 0.9, report.Audits[0].Entry["score"])
	})

	t.Run("missing and null audits", func(t *testing.T) {
		report, err := ParseReport([]byte(`{"metadata":{}}`))
		require.NoError(t, err)
		assert.Empty(t, report.Audits)

		report, err = ParseReport([]byte(`{"audits":null}`))
		require.NoError(t, err)
		assert.Empty(t, report.Audits)
	})

	invalid := map[string]string{
		"empty":           ``,
		"not json":        `lighthouse failed`,
		"array":           `[{"audits":{}}]`,
		"string":          `"report"`,
		"truncated":       `{"audits":{"a":{}}`,
		"audits is array": `{"audits":[{"score":0.1}]}`,
		"trailing data":   `{"audits":{}} {}`,
	}
	for name, doc := range invalid {
		t.Run("invalid "+name, func(t *testing.T) {
			report, err := ParseReport([]byte(doc))

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidReportFormat))
			assert.Nil(t, report)
		})
	}
}

func TestReportJSONRoundTrip(t *testing.T) {
	report := mustReport(t, map[string]any{"fetchTime": "2026-10-19T00:00:00Z"},
		mustAudit(t, "second", map[string]any{"score": 0.5}),
		mustAudit(t, "first", map[string]any{"score": 0.1}),
	)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"second", "first"}, decoded.AuditIDs())
	assert.JSONEq(t, `{"fetchTime":"2026-10-19T00:00:00Z"}`, string(decoded.Metadata))
}

func TestReportWithoutMetadataEncodesEmptyObject(t *testing.T) {
	data, err := json.Marshal(mustReport(t, nil))

	require.NoError(t, err)
	assert.Equal(t, `{"metadata":{},"audits":{}}`, string(data))
}

func TestNewAuditNilEntry(t *testing.T) {
	a := mustAudit(t, "empty", nil)

	assert.Equal(t, `{}`, string(a.Raw))
	assert.NotNil(t, a.Entry)
}
