package feed

import "encoding/json"

// LastSeen maps channel name to the id of the most recently notified item.
// An empty id means "never seen" and is persisted as JSON null.
type LastSeen map[string]string

// NewLastSeen returns a state with every channel mapped to absent.
func NewLastSeen(channels []Channel) LastSeen {
	out := make(LastSeen, len(channels))
	for _, ch := range channels {
		out[ch.Name] = ""
	}
	return out
}

// Get returns the last-seen id for name and whether one was recorded.
func (s LastSeen) Get(name string) (string, bool) {
	id := s[name]
	return id, id != ""
}

func (s LastSeen) Clone() LastSeen {
	out := make(LastSeen, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (s LastSeen) Equal(o LastSeen) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		ov, ok := o[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Reconcile returns a copy restricted to the configured channel names:
// unknown keys are dropped and missing channels are added as absent.
func (s LastSeen) Reconcile(channels []Channel) (out LastSeen, dropped []string) {
	out = NewLastSeen(channels)
	for k, v := range s {
		if _, ok := out[k]; !ok {
			dropped = append(dropped, k)
			continue
		}
		out[k] = v
	}
	return out, dropped
}

func (s LastSeen) MarshalJSON() ([]byte, error) {
	m := make(map[string]*string, len(s))
	for k, v := range s {
		if v == "" {
			m[k] = nil
			continue
		}
		id := v
		m[k] = &id
	}
	return json.Marshal(m)
}

func (s *LastSeen) UnmarshalJSON(b []byte) error {
	var m map[string]*string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if m == nil {
		*s = nil
		return nil
	}
	out := make(LastSeen, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = *v
	}
	*s = out
	return nil
}
