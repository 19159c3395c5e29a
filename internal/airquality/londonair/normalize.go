package londonair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Marker is the prefix the upstream puts on attribute keys.
const Marker = "@"

// ErrShape is returned when a field is present but is neither a mapping nor a list.
var ErrShape = errors.New("unexpected shape")

// Record is one flat upstream object with marker prefixes removed.
type Record map[string]any

// Normalizer turns the upstream's one-or-many fields into record lists.
// Every anomaly it reports is logged and counted.
type Normalizer struct {
	log       zerolog.Logger
	anomalies atomic.Int64
}

// NewNormalizer creates a normalizer that reports to log.
func NewNormalizer(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Report logs an anomaly at warn level and counts it.
func (n *Normalizer) Report() *zerolog.Event {
	n.anomalies.Add(1)
	return n.log.Warn()
}

// Anomalies returns the number of anomalies reported so far.
func (n *Normalizer) Anomalies() int64 {
	return n.anomalies.Load()
}

// Records walks root along path and normalizes the field found there.
// A missing field yields no records. A field of the wrong shape is reported
// and yields no records.
func (n *Normalizer) Records(root any, path ...string) []Record {
	where := strings.Join(path, ".")
	v := root
	for i, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			if v != nil {
				n.Report().
					Str("path", strings.Join(path[:i], ".")).
					Str("type", fmt.Sprintf("%T", v)).
					Msg("expected mapping in upstream response")
			}
			return nil
		}
		v = lookup(m, key)
		if v == nil {
			return nil
		}
	}

	records, _ := n.Many(v, where)
	return records
}

// Many normalizes a value that may be one mapping or a list of mappings.
// ok is false when v is present but has neither shape; that case is reported.
// List elements that are not mappings are reported and dropped.
func (n *Normalizer) Many(v any, where string) (records []Record, ok bool) {
	records, dropped, err := OneOrMany(v)
	if err != nil {
		n.Report().
			Str("path", where).
			Str("type", fmt.Sprintf("%T", v)).
			Msg("field is neither a mapping nor a list")
		return nil, false
	}
	if dropped > 0 {
		n.Report().
			Str("path", where).
			Int("dropped", dropped).
			Msg("list contained non-mapping entries")
	}
	return records, true
}

// OneOrMany normalizes v without reporting. nil yields no records. A mapping
// yields one record. A list yields one record per mapping element, in order;
// dropped counts the elements that were not mappings.
func OneOrMany(v any) (records []Record, dropped int, err error) {
	switch t := v.(type) {
	case nil:
		return []Record{}, 0, nil
	case map[string]any:
		return []Record{toRecord(t)}, 0, nil
	case []any:
		records = make([]Record, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				dropped++
				continue
			}
			records = append(records, toRecord(m))
		}
		return records, dropped, nil
	default:
		return nil, 0, ErrShape
	}
}

// StripMarkers removes the marker prefix from every key, recursively.
func StripMarkers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.TrimPrefix(k, Marker)] = StripMarkers(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = StripMarkers(val)
		}
		return out
	default:
		return v
	}
}

func toRecord(m map[string]any) Record {
	return Record(StripMarkers(m).(map[string]any))
}

func lookup(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	return m[Marker+key]
}

// String returns the field as a trimmed string. Numbers are formatted.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Float returns the field as a number. ok is false when it is absent, empty
// or not numeric.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Int returns the field as an integer. ok is false when it is absent, empty
// or not an integer.
func (r Record) Int(key string) (int, bool) {
	f, ok := r.Float(key)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Time parses the field as an upstream timestamp. An empty field yields nil.
func (r Record) Time(key string) (*time.Time, error) {
	return ParseOptionalTimestamp(r.String(key))
}

// Field returns the raw field, for nested one-or-many values.
func (r Record) Field(key string) any {
	return r[key]
}
