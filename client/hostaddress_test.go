package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHostAddress(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected HostAddress
	}{
		{"NoPort", "1.2.3.4", HostAddress{Host: "1.2.3.4", Port: 443}},
		{"WithPort", "1.2.3.4:50211", HostAddress{Host: "1.2.3.4", Port: 50211}},
		{"Hostname", "testnet.mirrornode.hedera.com:443", HostAddress{Host: "testnet.mirrornode.hedera.com", Port: 443}},
		{"SplitsOnLastColon", "a:b:5600", HostAddress{Host: "a:b", Port: 5600}},
		{"ZeroPort", "node:0", HostAddress{Host: "node", Port: 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, err := ParseHostAddress(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, addr)
		})
	}
}

func TestParseHostAddressErrors(t *testing.T) {
	for _, input := range []string{"", ":50211", "host:", "host:port", "host:65536", "host:-1"} {
		_, err := ParseHostAddress(input)
		assert.ErrorIs(t, err, ErrParse, "input `%s`", input)
	}
}

func TestHostAddressRoundTrip(t *testing.T) {
	addrs := []HostAddress{
		{Host: "1.2.3.4", Port: 443},
		{Host: "localhost", Port: 0},
		{Host: "node.example.com", Port: 65535},
		{Host: "a:b", Port: 1},
	}

	for _, addr := range addrs {
		parsed, err := ParseHostAddress(addr.String())
		require.NoError(t, err)
		assert.Equal(t, addr, parsed)

		built, err := NewHostAddress(addr.Host, addr.Port)
		require.NoError(t, err)
		assert.Equal(t, addr, built)
	}

	// an empty host can only be built by hand and is rejected everywhere
	_, err := NewHostAddress("", 443)
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseHostAddress(HostAddress{Port: 443}.String())
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseHostAddressLenient(t *testing.T) {
	assert.Equal(t, HostAddress{Host: "mirror", Port: 443}, parseHostAddressLenient("mirror"))
	assert.Equal(t, HostAddress{Host: "mirror", Port: 5600}, parseHostAddressLenient("mirror:5600"))
	assert.Equal(t, HostAddress{Host: "mirror", Port: 443}, parseHostAddressLenient("mirror:https"))
}

func TestNormalizeNodePort(t *testing.T) {
	for _, port := range []uint16{0, 50111, 50211} {
		normalized, ok := normalizeNodePort(port)
		require.True(t, ok)
		assert.Equal(t, PlaintextNodePort, normalized)
	}

	for _, port := range []uint16{443, 50212, 5600} {
		_, ok := normalizeNodePort(port)
		assert.False(t, ok)
	}
}

func TestSameAddressesIgnoresOrder(t *testing.T) {
	a := []HostAddress{{"1.1.1.1", 50211}, {"2.2.2.2", 50211}}
	b := []HostAddress{{"2.2.2.2", 50211}, {"1.1.1.1", 50211}, {"2.2.2.2", 50211}}
	c := []HostAddress{{"1.1.1.1", 50211}}

	assert.True(t, sameAddresses(a, b))
	assert.False(t, sameAddresses(a, c))
}
