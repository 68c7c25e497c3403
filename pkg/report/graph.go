package report

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/emicklei/dot"
	"github.com/ncastellan/netrecon/pkg/scanner"
	"github.com/rs/zerolog/log"
)

const gatewayIP = "192.168.1.1"

// Graph writes the network topology as a DOT file and, when the graphviz dot
// binary is available, renders PNG and SVG versions of it. Rendering failures
// are not fatal: the returned png and svg paths are empty and only the DOT
// path is guaranteed.
func (g *Generator) Graph(hosts []scanner.ParsedHost, scanID uint) (dotPath, pngPath, svgPath string, err error) {
	if err := g.ensureOutputDir(); err != nil {
		return "", "", "", err
	}
	dotPath = g.path(fmt.Sprintf("scan_%d.dot", scanID))

	source := BuildDot(hosts)
	if err := os.WriteFile(dotPath, []byte(source), 0o644); err != nil {
		return "", "", "", err
	}

	if _, lookErr := exec.LookPath("dot"); lookErr != nil {
		log.Warn().Msg("graphviz dot binary not found, skipping png/svg rendering")
		return dotPath, "", "", nil
	}

	pngPath = g.path(fmt.Sprintf("scan_%d.png", scanID))
	if renderErr := exec.Command("dot", "-Tpng", dotPath, "-o", pngPath).Run(); renderErr != nil {
		log.Warn().Err(renderErr).Msg("Failed to render topology png")
		pngPath = ""
	}

	svgPath = g.path(fmt.Sprintf("scan_%d.svg", scanID))
	if renderErr := exec.Command("dot", "-Tsvg", dotPath, "-o", svgPath).Run(); renderErr != nil {
		log.Warn().Err(renderErr).Msg("Failed to render topology svg")
		svgPath = ""
	}

	return dotPath, pngPath, svgPath, nil
}

// BuildDot renders the topology graph source. Every device hangs off a
// gateway node; machines classified as virtual get their own color and a
// VM-prefixed label.
func BuildDot(hosts []scanner.ParsedHost) string {
	graph := dot.NewGraph(dot.Directed)
	graph.ID("NetworkMap")
	graph.Attr("rankdir", "TB")
	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("style", "filled")
		n.Attr("fillcolor", "lightblue")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("color", "gray")
	})

	gateway := graph.Node("gateway").
		Attr("label", "Gateway\n"+gatewayIP).
		Attr("fillcolor", "#e74c3c").
		Attr("fontcolor", "white").
		Attr("fontsize", "12").
		Attr("shape", "box3d")

	for _, host := range hosts {
		if host.IsVM {
			continue
		}
		if host.IP == gatewayIP {
			continue
		}

		label := fmt.Sprintf("%s\n%s", nameOrUnknown(host.Hostname), host.IP)
		if len(host.Ports) > 0 {
			label += "\n" + topServices(host.Ports)
		}
		color := "#95a5a6"
		if len(host.Ports) > 0 {
			color = "#3498db"
		}
		node := graph.Node("host_" + safeIP(host.IP)).
			Attr("label", label).
			Attr("fillcolor", color)
		graph.Edge(gateway, node)
	}

	for _, host := range hosts {
		if !host.IsVM {
			continue
		}
		label := fmt.Sprintf("VM: %s\n%s\n(%s)", nameOrUnknown(host.Hostname), host.IP, host.VMType)
		if len(host.Ports) > 0 {
			label += "\n" + topServices(host.Ports)
		}
		node := graph.Node("vm_" + safeIP(host.IP)).
			Attr("label", label).
			Attr("fillcolor", "#9b59b6").
			Attr("fontcolor", "white")
		graph.Edge(gateway, node)
	}

	return graph.String()
}

func nameOrUnknown(hostname string) string {
	if hostname == "" {
		return "Unknown"
	}
	return hostname
}

func topServices(ports []scanner.ParsedPort) string {
	names := make([]string, 0, 3)
	for _, port := range ports {
		if len(names) == 3 {
			break
		}
		names = append(names, port.Service)
	}
	return strings.Join(names, ", ")
}

func safeIP(ip string) string {
	return strings.ReplaceAll(ip, ".", "_")
}
