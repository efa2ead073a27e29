package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ParseReport decodes a Lighthouse JSON document.
// The order of the audits object is preserved; unknown top-level fields are skipped.
func ParseReport(data []byte) (*Report, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectObject(dec); err != nil {
		return nil, err
	}

	report := &Report{}
	for dec.More() {
		key, err := nextKey(dec)
		if err != nil {
			return nil, err
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: decoding %q: %v", ErrInvalidReportFormat, key, err)
		}

		switch key {
		case "metadata":
			report.Metadata = raw
		case "audits":
			audits, err := parseAudits(raw)
			if err != nil {
				return nil, err
			}
			report.Audits = audits
		}
	}

	// Closing brace, then nothing but EOF
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReportFormat, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after report", ErrInvalidReportFormat)
	}

	return report, nil
}

// NewReport builds a report from an arbitrary metadata value and audits
func NewReport(metadata any, audits ...Audit) (*Report, error) {
	report := &Report{Audits: audits}
	if metadata != nil {
		raw, err := marshalJSON(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata: %w", err)
		}
		report.Metadata = raw
	}
	return report, nil
}

// NewAudit builds an audit from a decoded entry
func NewAudit(id string, entry map[string]any) (Audit, error) {
	if entry == nil {
		entry = map[string]any{}
	}
	raw, err := marshalJSON(entry)
	if err != nil {
		return Audit{}, fmt.Errorf("marshaling audit %s: %w", id, err)
	}
	return Audit{ID: id, Raw: raw, Entry: entry}, nil
}

// MarshalJSON writes the report with its audits in order
func (r Report) MarshalJSON() ([]byte, error) {
	return encodeDocument(r.Metadata, r.Audits)
}

// UnmarshalJSON decodes the report with ParseReport
func (r *Report) UnmarshalJSON(data []byte) error {
	parsed, err := ParseReport(data)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}

// MarshalJSON writes the chunk in the same shape as a report
func (c Chunk) MarshalJSON() ([]byte, error) {
	return encodeDocument(c.Metadata, c.Audits)
}

// Report returns the chunk as a standalone report
func (c Chunk) Report() *Report {
	return &Report{Metadata: c.Metadata, Audits: c.Audits}
}

// AuditIDs lists the audit identifiers in order
func (r *Report) AuditIDs() []string {
	ids := make([]string, len(r.Audits))
	for i, a := range r.Audits {
		ids[i] = a.ID
	}
	return ids
}

func expectObject(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReportFormat, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidReportFormat)
	}
	return nil
}

func nextKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidReportFormat, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected token %v", ErrInvalidReportFormat, tok)
	}
	return key, nil
}

// parseAudits decodes the audits object. A repeated identifier replaces the
// earlier entry in place.
func parseAudits(raw json.RawMessage) ([]Audit, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := expectObject(dec); err != nil {
		return nil, fmt.Errorf("audits: %w", err)
	}

	var audits []Audit
	index := make(map[string]int)
	for dec.More() {
		id, err := nextKey(dec)
		if err != nil {
			return nil, err
		}

		var entryRaw json.RawMessage
		if err := dec.Decode(&entryRaw); err != nil {
			return nil, fmt.Errorf("%w: decoding audit %q: %v", ErrInvalidReportFormat, id, err)
		}

		a := Audit{ID: id, Raw: entryRaw, Entry: decodeEntry(entryRaw)}
		if i, seen := index[id]; seen {
			audits[i] = a
			continue
		}
		index[id] = len(audits)
		audits = append(audits, a)
	}

	return audits, nil
}

// decodeEntry is permissive: anything that is not an object becomes an empty entry
func decodeEntry(raw json.RawMessage) Entry {
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil || entry == nil {
		return Entry{}
	}
	return entry
}

func encodeDocument(metadata json.RawMessage, audits []Audit) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`{"metadata":`)
	if len(metadata) == 0 {
		buf.WriteString("{}")
	} else {
		buf.Write(metadata)
	}

	buf.WriteString(`,"audits":{`)
	for i, a := range audits {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalJSON(a.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		raw, err := a.rawJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteString("}}")

	return buf.Bytes(), nil
}

// rawJSON returns the entry's source bytes, or encodes the decoded entry when
// the audit was assembled by hand
func (a Audit) rawJSON() (json.RawMessage, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	if a.Entry == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := marshalJSON(a.Entry)
	if err != nil {
		return nil, fmt.Errorf("marshaling audit %s: %w", a.ID, err)
	}
	return raw, nil
}

// marshalJSON encodes v compactly, leaving <, > and & unescaped as they
// appear in report text
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (e Entry) number(key string) (float64, bool) {
	switch v := e[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func (e Entry) text(key string) (string, bool) {
	v, ok := e[key]
	if !ok {
		return "", false
	}
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return stringify(v), true
	}
	return s, true
}

func (e Entry) items() []any {
	details, ok := e["details"].(map[string]any)
	if !ok {
		return nil
	}
	items, _ := details["items"].([]any)
	return items
}
