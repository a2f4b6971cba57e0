package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowlist_Contains(t *testing.T) {
	a, err := ParseAllowlist([]string{"192.168.50.1", " 10.1.0.0/16 ", "", "fe80::1"})
	require.NoError(t, err)
	assert.Equal(t, 3, a.Len())

	tests := []struct {
		origin string
		want   bool
	}{
		{"192.168.50.1", true},
		{"::ffff:192.168.50.1", true},
		{"192.168.50.2", false},
		{"10.1.200.7", true},
		{"10.2.0.1", false},
		{"fe80::1", true},
		{"fe80::1%eth0", true},
		{"10.0.0.9", false},
		{"not-an-ip", false},
		{"", false},
		{"192.168.50.1:5314", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Contains(tt.origin))
		})
	}
}

func TestParseAllowlist_Invalid(t *testing.T) {
	_, err := ParseAllowlist([]string{"192.168.50"})
	assert.Error(t, err)

	_, err = ParseAllowlist([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestAllowlist_NilRejectsEverything(t *testing.T) {
	var a *Allowlist
	assert.False(t, a.Contains("127.0.0.1"))
	assert.Zero(t, a.Len())
}
