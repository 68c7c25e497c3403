package scanner

import (
	"strings"
)

// vmVendors are MAC vendor strings that identify virtualization platforms.
// A vendor match always wins over the softer heuristics below.
var vmVendors = []string{"QEMU", "VMware", "VirtualBox", "Xen", "Microsoft", "Parallels"}

// vmOSIndicators maps substrings of the detected OS to a platform label.
// Order matters: the first hit is kept.
var vmOSIndicators = []struct {
	indicator string
	label     string
}{
	{"docker", "Docker"},
	{"lxc", "LXC"},
	{"container", "Container"},
	{"kvm", "KVM"},
	{"hyperv", "Hyper-V"},
	{"vmware", "VMware"},
	{"virtualbox", "VirtualBox"},
	{"xen", "Xen"},
}

// Classify labels a parsed host as a virtual or containerized instance.
// It only ever touches the IsVM and VMType fields.
func Classify(host *ParsedHost) {
	vendor := strings.ToLower(host.Vendor)
	for _, vmVendor := range vmVendors {
		if strings.Contains(vendor, strings.ToLower(vmVendor)) {
			host.IsVM = true
			host.VMType = vmVendor
			return
		}
	}

	osInfo := strings.ToLower(host.OS)
	for _, entry := range vmOSIndicators {
		if strings.Contains(osInfo, entry.indicator) {
			host.IsVM = true
			host.VMType = entry.label
			return
		}
	}

	// Docker bridge and LXC address ranges.
	if strings.HasPrefix(host.IP, "172.17.") || strings.HasPrefix(host.IP, "172.18.") {
		host.IsVM = true
		if host.VMType == "" {
			host.VMType = "Docker"
		}
		return
	}
	if strings.HasPrefix(host.IP, "10.0.3.") {
		host.IsVM = true
		if host.VMType == "" {
			host.VMType = "LXC"
		}
	}
}
