package scanner

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Ullaakut/nmap/v3"
)

// ParsedPort is one open port pulled out of an nmap report.
type ParsedPort struct {
	Port         int               `json:"port"`
	Protocol     string            `json:"protocol"`
	Service      string            `json:"service"`
	Product      string            `json:"product"`
	Version      string            `json:"version"`
	ExtraInfo    string            `json:"extrainfo"`
	CPE          string            `json:"cpe"`
	ScriptOutput map[string]string `json:"script_output,omitempty"`
}

// ParsedHop is one traceroute observation on the path to a host.
type ParsedHop struct {
	TTL      int     `json:"ttl"`
	IP       string  `json:"ip"`
	Hostname string  `json:"hostname"`
	RTTMs    float64 `json:"rtt"`
}

// ParsedHost is the typed record for one host in an nmap report. The VM
// fields are left zero by the parser; the classifier fills them in.
type ParsedHost struct {
	IP            string       `json:"ip"`
	Hostname      string       `json:"hostname"`
	MAC           string       `json:"mac"`
	Vendor        string       `json:"vendor"`
	OS            string       `json:"os"`
	OSAccuracy    int          `json:"os_accuracy"`
	CPE           string       `json:"cpe"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	LastBoot      string       `json:"last_boot"`
	Distance      int          `json:"distance"`
	IsVM          bool         `json:"is_vm"`
	VMType        string       `json:"vm_type"`
	Ports         []ParsedPort `json:"ports"`
	Traceroute    []ParsedHop  `json:"traceroute"`
}

// ParseFile reads an nmap XML report from disk and parses it.
func ParseFile(path string) ([]ParsedHost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan output %s: %w", path, err)
	}
	return ParseXML(data)
}

// ParseXML turns raw nmap XML into typed host records. Hosts that are not
// up are skipped; only open ports are kept.
func ParseXML(data []byte) ([]ParsedHost, error) {
	var run nmap.Run
	if err := nmap.Parse(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse nmap XML: %w", err)
	}

	hosts := make([]ParsedHost, 0, len(run.Hosts))
	for _, host := range run.Hosts {
		if host.Status.State != "up" {
			continue
		}
		parsed := ParsedHost{}

		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				parsed.IP = addr.Addr
			case "mac":
				parsed.MAC = addr.Addr
				parsed.Vendor = addr.Vendor
			}
		}
		if len(host.Hostnames) > 0 {
			parsed.Hostname = host.Hostnames[0].Name
		}
		if len(host.OS.Matches) > 0 {
			match := host.OS.Matches[0]
			parsed.OS = match.Name
			parsed.OSAccuracy = match.Accuracy
			if len(match.Classes) > 0 && len(match.Classes[0].CPEs) > 0 {
				parsed.CPE = string(match.Classes[0].CPEs[0])
			}
		}
		parsed.UptimeSeconds = int64(host.Uptime.Seconds)
		parsed.LastBoot = host.Uptime.Lastboot
		parsed.Distance = host.Distance.Value

		for _, hop := range host.Trace.Hops {
			rtt, _ := strconv.ParseFloat(hop.RTT, 64)
			parsed.Traceroute = append(parsed.Traceroute, ParsedHop{
				TTL:      int(hop.TTL),
				IP:       hop.IPAddr,
				Hostname: hop.Host,
				RTTMs:    rtt,
			})
		}

		for _, port := range host.Ports {
			if port.State.State != "open" {
				continue
			}
			parsedPort := ParsedPort{
				Port:      int(port.ID),
				Protocol:  port.Protocol,
				Service:   port.Service.Name,
				Product:   port.Service.Product,
				Version:   port.Service.Version,
				ExtraInfo: port.Service.ExtraInfo,
			}
			if len(port.Service.CPEs) > 0 {
				parsedPort.CPE = string(port.Service.CPEs[0])
			}
			for _, script := range port.Scripts {
				if script.ID == "" || script.Output == "" {
					continue
				}
				if parsedPort.ScriptOutput == nil {
					parsedPort.ScriptOutput = make(map[string]string)
				}
				parsedPort.ScriptOutput[script.ID] = script.Output
			}
			parsed.Ports = append(parsed.Ports, parsedPort)
		}

		hosts = append(hosts, parsed)
	}
	return hosts, nil
}
