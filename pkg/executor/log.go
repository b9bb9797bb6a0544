package executor

import "encoding/json"

// LogEntry is one entry of the execution log. Extra fields are rendered at
// the same level as stage and message and take precedence over them.
type LogEntry struct {
	Stage   string
	Message string
	Extra   map[string]any
}

func (l LogEntry) fields() map[string]any {
	out := make(map[string]any, len(l.Extra)+2)
	out["stage"] = l.Stage
	out["message"] = l.Message
	for k, v := range l.Extra {
		out[k] = v
	}
	return out
}

func (l LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.fields())
}

func (l LogEntry) MarshalYAML() (any, error) {
	return l.fields(), nil
}
