package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const fullHostXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE nmaprun>
<nmaprun scanner="nmap" args="nmap -sV -O -R --osscan-guess --traceroute -oX scan_1_192_168_1_10.xml 192.168.1.10" start="1712000000" version="7.94" xmloutputversion="1.05">
<host>
<status state="up" reason="arp-response"/>
<address addr="192.168.1.10" addrtype="ipv4"/>
<address addr="52:54:00:12:34:56" addrtype="mac" vendor="QEMU virtual NIC"/>
<hostnames>
<hostname name="router.local" type="PTR"/>
</hostnames>
<ports>
<port protocol="tcp" portid="22">
<state state="open" reason="syn-ack" reason_ttl="64"/>
<service name="ssh" product="OpenSSH" version="8.9p1" extrainfo="Ubuntu Linux; protocol 2.0" method="probed" conf="10">
<cpe>cpe:/a:openbsd:openssh:8.9p1</cpe>
</service>
<script id="banner" output="SSH-2.0-OpenSSH_8.9p1 Ubuntu-3ubuntu0.6"/>
</port>
<port protocol="tcp" portid="80">
<state state="open" reason="syn-ack" reason_ttl="64"/>
<service name="http" product="nginx" version="1.18.0" method="probed" conf="10"/>
</port>
<port protocol="tcp" portid="443">
<state state="closed" reason="reset" reason_ttl="64"/>
<service name="https" method="table" conf="3"/>
</port>
</ports>
<os>
<osmatch name="Linux 5.0 - 5.14" accuracy="96" line="67241">
<osclass type="general purpose" vendor="Linux" osfamily="Linux" osgen="5.X" accuracy="96">
<cpe>cpe:/o:linux:linux_kernel:5</cpe>
</osclass>
</osmatch>
</os>
<uptime seconds="123456" lastboot="Mon Apr  1 10:00:00 2024"/>
<distance value="2"/>
<trace port="443" proto="tcp">
<hop ttl="1" ipaddr="192.168.1.1" rtt="0.50" host="gateway.local"/>
<hop ttl="2" ipaddr="192.168.1.10" rtt="1.25"/>
</trace>
</host>
<runstats><finished time="1712000100" elapsed="100.5" summary="Nmap done" exit="success"/><hosts up="1" down="0" total="1"/></runstats>
</nmaprun>`

const discoveryXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE nmaprun>
<nmaprun scanner="nmap" args="nmap -F -oX scan_1_discovery.xml 192.168.1.0/29" start="1712000000" version="7.94" xmloutputversion="1.05">
<host>
<status state="up" reason="arp-response"/>
<address addr="192.168.1.1" addrtype="ipv4"/>
<ports>
<port protocol="tcp" portid="80">
<state state="open" reason="syn-ack" reason_ttl="64"/>
<service name="http" method="table" conf="3"/>
</port>
</ports>
</host>
<host>
<status state="up" reason="echo-reply"/>
<address addr="192.168.1.2" addrtype="ipv4"/>
<ports>
<port protocol="tcp" portid="80">
<state state="closed" reason="reset" reason_ttl="64"/>
<service name="http" method="table" conf="3"/>
</port>
</ports>
</host>
<host>
<status state="down" reason="no-response"/>
<address addr="192.168.1.3" addrtype="ipv4"/>
</host>
<runstats><finished time="1712000030" elapsed="30.0" summary="Nmap done" exit="success"/><hosts up="2" down="1" total="3"/></runstats>
</nmaprun>`

func TestParseXMLFullHost(t *testing.T) {
	hosts, err := ParseXML([]byte(fullHostXML))
	assert.Nil(t, err)
	assert.Len(t, hosts, 1)

	host := hosts[0]
	assert.Equal(t, "192.168.1.10", host.IP)
	assert.Equal(t, "router.local", host.Hostname)
	assert.Equal(t, "52:54:00:12:34:56", host.MAC)
	assert.Equal(t, "QEMU virtual NIC", host.Vendor)
	assert.Equal(t, "Linux 5.0 - 5.14", host.OS)
	assert.Equal(t, 96, host.OSAccuracy)
	assert.Equal(t, "cpe:/o:linux:linux_kernel:5", host.CPE)
	assert.Equal(t, int64(123456), host.UptimeSeconds)
	assert.Equal(t, "Mon Apr  1 10:00:00 2024", host.LastBoot)
	assert.Equal(t, 2, host.Distance)

	// The closed 443 must be dropped.
	assert.Len(t, host.Ports, 2)
	ssh := host.Ports[0]
	assert.Equal(t, 22, ssh.Port)
	assert.Equal(t, "tcp", ssh.Protocol)
	assert.Equal(t, "ssh", ssh.Service)
	assert.Equal(t, "OpenSSH", ssh.Product)
	assert.Equal(t, "8.9p1", ssh.Version)
	assert.Equal(t, "Ubuntu Linux; protocol 2.0", ssh.ExtraInfo)
	assert.Equal(t, "cpe:/a:openbsd:openssh:8.9p1", ssh.CPE)
	assert.Equal(t, "SSH-2.0-OpenSSH_8.9p1 Ubuntu-3ubuntu0.6", ssh.ScriptOutput["banner"])

	http := host.Ports[1]
	assert.Equal(t, 80, http.Port)
	assert.Equal(t, "nginx", http.Product)
	assert.Empty(t, http.ScriptOutput)

	assert.Len(t, host.Traceroute, 2)
	assert.Equal(t, 1, host.Traceroute[0].TTL)
	assert.Equal(t, "192.168.1.1", host.Traceroute[0].IP)
	assert.Equal(t, "gateway.local", host.Traceroute[0].Hostname)
	assert.InDelta(t, 0.5, host.Traceroute[0].RTTMs, 0.001)
	assert.Equal(t, 2, host.Traceroute[1].TTL)

	// The parser leaves classification to the classifier.
	assert.False(t, host.IsVM)
}

func TestParseXMLSkipsDownHosts(t *testing.T) {
	hosts, err := ParseXML([]byte(discoveryXML))
	assert.Nil(t, err)
	assert.Len(t, hosts, 2)
	assert.Equal(t, "192.168.1.1", hosts[0].IP)
	assert.Len(t, hosts[0].Ports, 1)
	assert.Equal(t, "192.168.1.2", hosts[1].IP)
	assert.Empty(t, hosts[1].Ports)
}

func TestParseXMLInvalid(t *testing.T) {
	_, err := ParseXML([]byte("this is not nmap output"))
	assert.NotNil(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan_1_discovery.xml")
	err := os.WriteFile(path, []byte(discoveryXML), 0o644)
	assert.Nil(t, err)

	hosts, err := ParseFile(path)
	assert.Nil(t, err)
	assert.Len(t, hosts, 2)

	_, err = ParseFile(filepath.Join(dir, "missing.xml"))
	assert.NotNil(t, err)
}
