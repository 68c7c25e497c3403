package api

import (
	"bytes"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
)

// GetStatsHandler returns the headline network statistics.
// @Summary Network statistics
// @Description Unique host/VM/service counts plus scan and schedule totals
// @Tags Stats
// @Produce json
// @Success 200 {object} db.NetworkStats
// @Router /api/stats [get]
func GetStatsHandler(c *fiber.Ctx) error {
	stats, err := db.Connection.GetNetworkStats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not compute statistics", err.Error()))
	}
	return c.JSON(stats)
}

// GetUniqueHostsHandler lists the latest record per distinct IP.
// @Summary Unique hosts
// @Description Latest host record for each IP across all scans, IP sorted
// @Tags Stats
// @Produce json
// @Success 200 {array} db.Host
// @Router /api/hosts/unique [get]
func GetUniqueHostsHandler(c *fiber.Ctx) error {
	hosts, err := db.Connection.GetUniqueHosts()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not list hosts", err.Error()))
	}
	return c.JSON(hosts)
}

// GetUniqueVMsHandler lists the latest record per distinct VM IP.
// @Summary Unique virtual machines
// @Description Latest host record for each IP classified as a VM or container
// @Tags Stats
// @Produce json
// @Success 200 {array} db.Host
// @Router /api/vms/unique [get]
func GetUniqueVMsHandler(c *fiber.Ctx) error {
	vms, err := db.Connection.GetUniqueVMs()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not list VMs", err.Error()))
	}
	return c.JSON(vms)
}

// ServiceEntry is one port/product bucket inside the grouped service rollup.
type ServiceEntry struct {
	Port     int      `json:"port"`
	Protocol string   `json:"protocol"`
	Product  string   `json:"product"`
	Version  string   `json:"version"`
	Hosts    []string `json:"hosts"`
}

// GetUniqueServicesHandler returns services grouped by name then product.
// @Summary Grouped services
// @Description Services across all scans grouped by service name and product
// @Tags Stats
// @Produce json
// @Success 200 {object} map[string]map[string][]ServiceEntry
// @Router /api/services/unique [get]
func GetUniqueServicesHandler(c *fiber.Ctx) error {
	groups, err := db.Connection.GetServiceGroups()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not list services", err.Error()))
	}

	services := make(map[string]map[string][]ServiceEntry)
	for _, g := range groups {
		name := serviceName(g)
		product := productKey(g)

		if services[name] == nil {
			services[name] = make(map[string][]ServiceEntry)
		}

		var hosts []string
		if g.HostIPs != "" {
			hosts = strings.Split(g.HostIPs, ",")
			sortIPs(hosts)
		}
		services[name][product] = append(services[name][product], ServiceEntry{
			Port:     g.Port,
			Protocol: g.Protocol,
			Product:  g.Product,
			Version:  g.Version,
			Hosts:    hosts,
		})
	}
	return c.JSON(services)
}

// serviceName falls back to well-known ports when nmap reported no service.
func serviceName(g db.ServiceGroup) string {
	if g.Service != "" {
		return g.Service
	}
	switch g.Port {
	case 22:
		return "ssh"
	case 80:
		return "http"
	case 443:
		return "https"
	}
	return fmt.Sprintf("port-%d", g.Port)
}

func productKey(g db.ServiceGroup) string {
	switch {
	case g.Product != "" && g.Version != "":
		return g.Product + " " + g.Version
	case g.Product != "":
		return g.Product
	case g.Version != "":
		return "version " + g.Version
	}
	return fmt.Sprintf("port %d/%s", g.Port, g.Protocol)
}

func sortIPs(ips []string) {
	sort.SliceStable(ips, func(i, j int) bool {
		a := net.ParseIP(ips[i]).To4()
		b := net.ParseIP(ips[j]).To4()
		if a == nil || b == nil {
			return ips[i] < ips[j]
		}
		return bytes.Compare(a, b) < 0
	})
}
