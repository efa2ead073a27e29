// Package ulid generates prefixed, lexicographically sortable identifiers
// on top of github.com/oklog/ulid/v2.
package ulid

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes for the entities that carry IDs
const (
	PrefixRun      = "run"
	PrefixIssue    = "iss"
	PrefixDocument = "doc"
	PrefixRequest  = "req"

	// PrefixSeparator joins the prefix and the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// ULID is a ulid.ULID with an optional prefix
type ULID struct {
	ulid.ULID
	prefix string
}

// NewWithTime creates an unprefixed ULID for the given time
func NewWithTime(t time.Time) ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ULID{ULID: ulid.MustNew(ulid.Timestamp(t), entropy)}
}

// GenerateWithPrefix creates a ULID for now carrying prefix
func GenerateWithPrefix(prefix string) ULID {
	id := NewWithTime(time.Now())
	id.prefix = prefix
	return id
}

// Parse accepts both plain and prefixed IDs ("run-01J...")
func Parse(id string) (ULID, error) {
	prefix, raw := "", id
	if i := strings.LastIndex(id, PrefixSeparator); i >= 0 {
		prefix, raw = id[:i], id[i+1:]
	}

	parsed, err := ulid.Parse(raw)
	if err != nil {
		return ULID{}, err
	}
	return ULID{ULID: parsed, prefix: prefix}, nil
}

// Validate reports whether id parses
func Validate(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Prefix returns the ID's prefix, if any
func (u ULID) Prefix() string {
	return u.prefix
}

// String renders prefix-ULID, or the bare ULID without a prefix
func (u ULID) String() string {
	if u.prefix == "" {
		return u.ULID.String()
	}
	return u.prefix + PrefixSeparator + u.ULID.String()
}

// Time returns the timestamp encoded in the ID
func (u ULID) Time() time.Time {
	return ulid.Time(u.ULID.Time())
}

// MarshalJSON encodes the ID as a string
func (u ULID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON decodes the ID from a string
func (u *ULID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Value stores the ID as text
func (u ULID) Value() (driver.Value, error) {
	return u.String(), nil
}

// Scan reads the ID from text
func (u *ULID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		return u.scanString(v)
	case []byte:
		return u.scanString(string(v))
	}
	return fmt.Errorf("cannot scan %T into ULID", src)
}

func (u *ULID) scanString(s string) error {
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// RunID identifies an audit run
func RunID() string {
	return GenerateWithPrefix(PrefixRun).String()
}

// IssueID identifies a stored issue
func IssueID() string {
	return GenerateWithPrefix(PrefixIssue).String()
}

// DocumentID identifies a document in the local vector store
func DocumentID() string {
	return GenerateWithPrefix(PrefixDocument).String()
}

// RequestID identifies one CLI invocation in the logs
func RequestID() string {
	return GenerateWithPrefix(PrefixRequest).String()
}
