package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"
)

// timestampLayouts are tried in order for timestamp fields that do not parse
// as RFC 3339. Zone-less values are taken as UTC. Fractional seconds are
// accepted by every layout.
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses s with RFC 3339 first, then timestampLayouts.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// decodeEntry decodes one entry. A field whose value does not fit its Go
// type is left at its zero value and reported in dropped; only a value that
// is not a JSON object fails the entry. A JSON null yields a nil entry.
func decodeEntry(raw json.RawMessage) (e *Entry, dropped []string, err error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return nil, nil, nil
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil, errors.New("entry is not a JSON object")
	}

	var whole Entry
	if err := json.Unmarshal(raw, &whole); err == nil {
		return &whole, nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	e = &Entry{}
	for _, k := range keys {
		v := fields[k]
		if decodeField(e, k, v) {
			continue
		}
		if fixed, ok := normalizeTimestamp(v); ok && decodeField(e, k, fixed) {
			continue
		}
		dropped = append(dropped, k)
	}
	return e, dropped, nil
}

// decodeField merges {k: v} into e, leaving e untouched on error.
func decodeField(e *Entry, k string, v json.RawMessage) bool {
	single, err := json.Marshal(map[string]json.RawMessage{k: v})
	if err != nil {
		return false
	}
	next := *e
	if err := json.Unmarshal(single, &next); err != nil {
		return false
	}
	*e = next
	return true
}

// normalizeTimestamp rewrites a JSON string holding a timestamp in one of
// timestampLayouts as RFC 3339.
func normalizeTimestamp(v json.RawMessage) (json.RawMessage, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, false
	}
	t, ok := parseTimestamp(s)
	if !ok {
		return nil, false
	}
	out, err := json.Marshal(t.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, false
	}
	return out, true
}
