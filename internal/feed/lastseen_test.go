package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLastSeenAllAbsent(t *testing.T) {
	t.Parallel()
	s := NewLastSeen([]Channel{{Name: "a"}, {Name: "b"}})
	require.Len(t, s, 2)
	_, ok := s.Get("a")
	assert.False(t, ok)
	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestLastSeenJSONUsesNullForAbsent(t *testing.T) {
	t.Parallel()
	s := LastSeen{"A": "v9", "B": ""}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"A":"v9","B":null}`, string(b))

	var back LastSeen
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, s.Equal(back))
}

func TestLastSeenUnmarshalRejectsNonStringIDs(t *testing.T) {
	t.Parallel()
	var s LastSeen
	assert.Error(t, json.Unmarshal([]byte(`{"A": 12}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &s))
}

func TestLastSeenReconcile(t *testing.T) {
	t.Parallel()
	chans := []Channel{{Name: "a"}, {Name: "b"}}
	got, dropped := LastSeen{"a": "x", "gone": "y"}.Reconcile(chans)
	assert.Equal(t, LastSeen{"a": "x", "b": ""}, got)
	assert.Equal(t, []string{"gone"}, dropped)
}

func TestLastSeenCloneIsIndependent(t *testing.T) {
	t.Parallel()
	s := LastSeen{"a": "1"}
	c := s.Clone()
	c["a"] = "2"
	assert.Equal(t, "1", s["a"])
	assert.False(t, s.Equal(c))
}

func TestVideoURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://youtu.be/abc_123", VideoURL("https://youtu.be/", "abc_123"))
	assert.Equal(t, "https://example.com/v/a%2Fb", VideoURL("https://example.com/v", "a/b"))
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", VideoURL("https://www.youtube.com/watch?v=", "abc123"))
	assert.Equal(t, "https://www.youtube.com/watch?v=a%26b", VideoURL("https://www.youtube.com/watch?v=", "a&b"))
}

func TestProbeKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "rate_limited", RateLimited(403).Kind.String())
	r := RequestFailed(500, "status %d", 500)
	assert.Equal(t, "request_failed", r.Kind.String())
	assert.Equal(t, "status 500", r.Detail)
}
