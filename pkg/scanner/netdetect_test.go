package scanner

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNetworks(t *testing.T) {
	assert.Nil(t, ValidateNetworks([]string{"192.168.1.0/24", "10.0.0.0/8"}))
	assert.Nil(t, ValidateNetworks([]string{"192.168.1.1"}))
	assert.Nil(t, ValidateNetworks(nil))

	assert.NotNil(t, ValidateNetworks([]string{"192.168.1.0/33"}))
	assert.NotNil(t, ValidateNetworks([]string{"not-a-network"}))
	assert.NotNil(t, ValidateNetworks([]string{"192.168.1.0/24", "bogus/24"}))
}

func TestDetectAllLocalNetworks(t *testing.T) {
	networks := DetectAllLocalNetworks()
	for _, network := range networks {
		assert.False(t, strings.HasPrefix(network, "127."), network)
		assert.False(t, strings.HasPrefix(network, "169.254."), network)
		_, _, err := net.ParseCIDR(network)
		assert.Nil(t, err, network)
	}
}

func TestDetectCurrentNetwork(t *testing.T) {
	network, err := DetectCurrentNetwork()
	if err != nil {
		t.Skipf("no local network available: %v", err)
	}
	assert.True(t, strings.HasSuffix(network, "/24"))
	_, _, err = net.ParseCIDR(network)
	assert.Nil(t, err)
}
