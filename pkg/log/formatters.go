package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// JSONFormatter renders entries as single-line JSON objects.
type JSONFormatter struct {
	// TimestampFormat overrides the timestamp layout. Defaults to RFC3339Nano.
	TimestampFormat string
}

// Format renders the entry as JSON.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	layout := f.TimestampFormat
	if layout == "" {
		layout = time.RFC3339Nano
	}
	doc := map[string]interface{}{
		"level": entry.Level.String(),
		"msg":   entry.Message,
		"ts":    entry.Timestamp.Format(layout),
	}
	if entry.Caller != "" {
		doc["caller"] = entry.Caller
	}
	if entry.Error != nil {
		doc["error"] = entry.Error.Error()
	}
	for k, v := range entry.Fields {
		if _, reserved := doc[k]; reserved {
			continue
		}
		doc[k] = v
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// TextFormatter renders entries as "ts LEVEL msg k=v ..." lines for humans.
type TextFormatter struct {
	// TimestampFormat overrides the timestamp layout. Defaults to time.Kitchen-like stamp.
	TimestampFormat string
}

// Format renders the entry as a human-readable line.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	layout := f.TimestampFormat
	if layout == "" {
		layout = "2006-01-02T15:04:05.000"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %-5s %s", entry.Timestamp.Format(layout), entry.Level.String(), entry.Message)

	// Stable field order keeps lines diffable.
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, entry.Fields[k])
	}
	if entry.Error != nil {
		fmt.Fprintf(&buf, " error=%q", entry.Error.Error())
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
