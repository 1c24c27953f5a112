package netmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint_HostPort(t *testing.T) {
	ep, err := ParseEndpoint("example.com:443")
	require.NoError(t, err)
	assert.Equal(t, "example.com", ep.Host)
	assert.Equal(t, 443, ep.Port)
	assert.False(t, ep.Resolved())
}

func TestParseEndpoint_IPLiteral(t *testing.T) {
	ep, err := ParseEndpoint("192.0.2.1:80")
	require.NoError(t, err)
	assert.True(t, ep.Resolved())
	assert.Equal(t, "192.0.2.1", ep.IP.String())
}

func TestParseEndpoint_IPv6Literal(t *testing.T) {
	ep, err := ParseEndpoint("[2001:db8::1]:8080")
	require.NoError(t, err)
	assert.True(t, ep.Resolved())
	assert.Equal(t, 8080, ep.Port)
	assert.Equal(t, "[2001:db8::1]:8080", ep.String())
}

func TestParseEndpoint_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		target string
	}{
		{"no port", "example.com"},
		{"empty", ""},
		{"bad port", "example.com:http2x"},
		{"port too large", "example.com:70000"},
		{"empty host", ":80"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEndpoint(tc.target)
			var invalid *InvalidEndpointError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestEndpoint_Loopback(t *testing.T) {
	ep, err := NewEndpoint("127.0.0.1", 22)
	require.NoError(t, err)
	assert.True(t, ep.Loopback())

	ep, err = NewEndpoint("localhost", 22)
	require.NoError(t, err)
	assert.True(t, ep.Loopback())

	ep, err = NewEndpoint("192.0.2.1", 22)
	require.NoError(t, err)
	assert.False(t, ep.Loopback())
}
