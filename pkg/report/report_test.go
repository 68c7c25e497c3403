package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ncastellan/netrecon/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

func sampleHosts() []scanner.ParsedHost {
	return []scanner.ParsedHost{
		{
			IP:       "192.168.1.10",
			Hostname: "web-server",
			MAC:      "AA:BB:CC:DD:EE:FF",
			Vendor:   "Dell Inc.",
			OS:       "Linux 5.4",
			Ports: []scanner.ParsedPort{
				{Port: 22, Protocol: "tcp", Service: "ssh", Product: "OpenSSH", Version: "8.2p1", ExtraInfo: "Ubuntu Linux; protocol 2.0"},
				{Port: 80, Protocol: "tcp", Service: "http", Product: "nginx", Version: "1.18.0"},
			},
		},
		{
			IP: "192.168.1.2",
		},
		{
			IP:       "192.168.1.20",
			Hostname: "build-vm",
			Vendor:   "QEMU",
			IsVM:     true,
			VMType:   "KVM",
			Ports: []scanner.ParsedPort{
				{Port: 443, Protocol: "tcp", Service: "https"},
			},
		},
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHTML(&buf, sampleHosts())
	assert.NoError(t, err)

	content := buf.String()
	assert.Contains(t, content, "Network Map Report", "report should contain title")
	assert.Contains(t, content, "web-server (192.168.1.10)", "report should contain host title")
	assert.Contains(t, content, "Unknown (192.168.1.2)", "hosts without hostname fall back to Unknown")
	assert.Contains(t, content, `href="http://192.168.1.10:80"`, "http services get access links")
	assert.Contains(t, content, "ssh 192.168.1.10 -p 22", "ssh services get a command snippet")
	assert.Contains(t, content, "KVM", "vm badge should name the vm type")
	assert.Contains(t, content, "No services detected", "portless hosts get a placeholder")
	assert.Contains(t, content, "OpenSSH 8.2p1 Ubuntu Linux; protocol 2.0")

	// 192.168.1.2 sorts numerically before 192.168.1.10
	assert.Less(t, strings.Index(content, "(192.168.1.2)"), strings.Index(content, "(192.168.1.10)"))
}

func TestGeneratorHTML(t *testing.T) {
	g := &Generator{OutputDir: t.TempDir()}
	path, err := g.HTML(sampleHosts(), 7)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(g.OutputDir, "scan_7.html"), path)

	content, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(content), "Discovered Devices")
}

func TestGeneratorWorkbook(t *testing.T) {
	g := &Generator{OutputDir: t.TempDir()}
	path, err := g.Workbook(sampleHosts(), 3)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(g.OutputDir, "scan_3.xlsx"), path)

	f, err := excelize.OpenFile(path)
	assert.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Summary", "Devices", "Services", "Virtual Machines"}, f.GetSheetList())

	devices, err := f.GetCellValue("Summary", "B5")
	assert.NoError(t, err)
	assert.Equal(t, "3", devices)
	vms, err := f.GetCellValue("Summary", "B6")
	assert.NoError(t, err)
	assert.Equal(t, "1", vms)
	services, err := f.GetCellValue("Summary", "B7")
	assert.NoError(t, err)
	assert.Equal(t, "3", services)

	// first device row is the numerically lowest IP
	firstIP, err := f.GetCellValue("Devices", "A2")
	assert.NoError(t, err)
	assert.Equal(t, "192.168.1.2", firstIP)

	vmIP, err := f.GetCellValue("Virtual Machines", "A2")
	assert.NoError(t, err)
	assert.Equal(t, "192.168.1.20", vmIP)
	vmServices, err := f.GetCellValue("Virtual Machines", "F2")
	assert.NoError(t, err)
	assert.Equal(t, "443/https", vmServices)
}

func TestBuildDot(t *testing.T) {
	source := BuildDot(sampleHosts())

	assert.Contains(t, source, "digraph")
	assert.Contains(t, source, "NetworkMap")
	assert.Contains(t, source, `Gateway\n192.168.1.1`)
	assert.Contains(t, source, "box3d", "gateway uses the 3d box shape")
	assert.Contains(t, source, `VM: build-vm\n192.168.1.20\n(KVM)\nhttps`)
	assert.Contains(t, source, `"#9b59b6"`, "vms are purple")
	assert.Contains(t, source, `"#3498db"`, "hosts with services are blue")
	assert.Contains(t, source, `"#95a5a6"`, "hosts without services are gray")
	assert.Contains(t, source, "->", "every device is connected to the gateway")
	assert.Contains(t, source, "ssh, http", "labels carry the top services")
}

func TestBuildDotSkipsGatewayHost(t *testing.T) {
	hosts := []scanner.ParsedHost{
		{IP: "192.168.1.1", Hostname: "router"},
		{IP: "192.168.1.5", Hostname: "desktop"},
	}
	source := BuildDot(hosts)
	assert.NotContains(t, source, "router", "the gateway address is not duplicated as a host node")
	assert.Contains(t, source, "desktop")
}

func TestGeneratorGraph(t *testing.T) {
	g := &Generator{OutputDir: t.TempDir()}
	dotPath, pngPath, svgPath, err := g.Graph(sampleHosts(), 9)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(g.OutputDir, "scan_9.dot"), dotPath)

	content, err := os.ReadFile(dotPath)
	assert.NoError(t, err)
	assert.Contains(t, string(content), "NetworkMap")

	// png/svg rendering depends on the graphviz binary being installed;
	// when it is, the files must exist, otherwise the paths are empty.
	if pngPath != "" {
		_, err := os.Stat(pngPath)
		assert.NoError(t, err)
	}
	if svgPath != "" {
		_, err := os.Stat(svgPath)
		assert.NoError(t, err)
	}
}

func TestServiceURL(t *testing.T) {
	tests := []struct {
		name     string
		port     scanner.ParsedPort
		expected string
	}{
		{"plain http", scanner.ParsedPort{Port: 80, Service: "http"}, "http://10.0.0.1:80"},
		{"https", scanner.ParsedPort{Port: 443, Service: "https"}, "https://10.0.0.1:443"},
		{"ssl wrapped", scanner.ParsedPort{Port: 8443, Service: "ssl/http"}, "https://10.0.0.1:8443"},
		{"alt http", scanner.ParsedPort{Port: 8080, Service: "http-proxy"}, "http://10.0.0.1:8080"},
		{"not web", scanner.ParsedPort{Port: 22, Service: "ssh"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, serviceURL("10.0.0.1", tt.port))
		})
	}
}

func TestIPLess(t *testing.T) {
	assert.True(t, ipLess("192.168.1.2", "192.168.1.10"))
	assert.True(t, ipLess("10.0.0.1", "192.168.1.1"))
	assert.False(t, ipLess("192.168.1.10", "192.168.1.2"))
	assert.True(t, ipLess("not-an-ip", "zz"), "non IPv4 values fall back to string order")
}
