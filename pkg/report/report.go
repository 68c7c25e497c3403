package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ncastellan/netrecon/pkg/scanner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

//go:embed templates/*
var templates embed.FS

// Generator writes scan report artifacts under OutputDir. Files are named by
// scan ID (scan_1.html, scan_1.xlsx, scan_1.dot, ...) so cleanup can glob them
// together with the raw nmap output.
type Generator struct {
	OutputDir string
}

// NewGenerator builds a Generator from configuration.
func NewGenerator() *Generator {
	return &Generator{
		OutputDir: viper.GetString("scan.output_dir"),
	}
}

func (g *Generator) path(name string) string {
	return filepath.Join(g.OutputDir, name)
}

func (g *Generator) ensureOutputDir() error {
	return os.MkdirAll(g.OutputDir, 0o755)
}

// HTML renders the device report for a scan and returns the file path.
func (g *Generator) HTML(hosts []scanner.ParsedHost, scanID uint) (string, error) {
	if err := g.ensureOutputDir(); err != nil {
		return "", err
	}
	path := g.path(fmt.Sprintf("scan_%d.html", scanID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := WriteHTML(f, hosts); err != nil {
		return "", err
	}
	return path, nil
}

// WriteHTML renders the HTML report for the given hosts to w.
func WriteHTML(w io.Writer, hosts []scanner.ParsedHost) error {
	tmpl, err := template.New("report.tmpl").ParseFS(templates, "templates/report.tmpl")
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse report template")
		return err
	}

	views := processHosts(hosts)
	data := HTMLReportData{
		Title:       "Network Map Report",
		Summary:     generateSummary(views),
		Hosts:       views,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
	}

	if err := tmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Failed to execute report template")
		return err
	}
	return nil
}
