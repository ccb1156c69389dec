package telemetry

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHostIP(t *testing.T) {
	ip := getHostIP()
	if ip == "" {
		t.Skip("no host IP resolvable in this environment")
	}

	parsedIP := net.ParseIP(ip)
	require.NotNil(t, parsedIP, "expected a valid IP, got %q", ip)
	assert.False(t, parsedIP.IsLoopback())
}

func TestGetFirstNonLoopbackIP(t *testing.T) {
	ip := getFirstNonLoopbackIP()
	if ip == "" {
		t.Skip("no non-loopback interface address in this environment")
	}

	parsedIP := net.ParseIP(ip)
	require.NotNil(t, parsedIP, "expected a valid IP, got %q", ip)
	assert.False(t, parsedIP.IsLoopback())
}

func TestBuildResource_IncludesServiceAndCustomAttrs(t *testing.T) {
	cfg := &Config{
		ServiceName:    "rcforest",
		ServiceVersion: "test",
		ResourceAttrs:  map[string]string{"env": "staging"},
	}

	res, err := buildResource(context.Background(), cfg)
	require.NoError(t, err)

	found := map[string]string{}
	for _, kv := range res.Attributes() {
		found[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "rcforest", found["service.name"])
	assert.Equal(t, "test", found["service.version"])
	assert.Equal(t, "staging", found["env"])
}
