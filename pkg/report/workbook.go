package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncastellan/netrecon/pkg/scanner"
	"github.com/xuri/excelize/v2"
)

// Workbook writes the scan results as a spreadsheet with Summary, Devices,
// Services and Virtual Machines sheets and returns the file path.
func (g *Generator) Workbook(hosts []scanner.ParsedHost, scanID uint) (string, error) {
	if err := g.ensureOutputDir(); err != nil {
		return "", err
	}
	path := g.path(fmt.Sprintf("scan_%d.xlsx", scanID))

	f := excelize.NewFile()
	defer f.Close()

	views := processHosts(hosts)
	summary := generateSummary(views)

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	if err != nil {
		return "", err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
	})
	if err != nil {
		return "", err
	}

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return "", err
	}
	f.SetCellValue("Summary", "A1", "Network Map Summary")
	f.SetCellStyle("Summary", "A1", "A1", titleStyle)
	f.SetCellValue("Summary", "A3", "Generated:")
	f.SetCellValue("Summary", "B3", time.Now().Format("2006-01-02 15:04:05"))
	f.SetCellValue("Summary", "A5", "Total Devices:")
	f.SetCellValue("Summary", "B5", summary.TotalDevices)
	f.SetCellValue("Summary", "A6", "Virtual Machines:")
	f.SetCellValue("Summary", "B6", summary.VirtualMachines)
	f.SetCellValue("Summary", "A7", "Total Services:")
	f.SetCellValue("Summary", "B7", summary.TotalServices)
	f.SetColWidth("Summary", "A", "A", 20)
	f.SetColWidth("Summary", "B", "B", 24)

	devices := [][]interface{}{
		{"IP Address", "Hostname", "MAC Address", "Vendor", "Is VM", "VM Type", "Open Ports", "OS"},
	}
	for _, host := range views {
		isVM := "No"
		if host.IsVM {
			isVM = "Yes"
		}
		devices = append(devices, []interface{}{
			host.IP, host.Hostname, host.MAC, host.Vendor, isVM, host.VMType, len(host.Services), host.OS,
		})
	}
	if err := writeSheet(f, "Devices", devices, headerStyle, 50); err != nil {
		return "", err
	}

	services := [][]interface{}{
		{"IP Address", "Hostname", "Port", "Protocol", "Service", "Product", "Version", "Extra Info"},
	}
	for _, host := range hosts {
		for _, port := range host.Ports {
			services = append(services, []interface{}{
				host.IP, host.Hostname, port.Port, strings.ToUpper(port.Protocol),
				port.Service, port.Product, port.Version, port.ExtraInfo,
			})
		}
	}
	if err := writeSheet(f, "Services", services, headerStyle, 50); err != nil {
		return "", err
	}

	vms := [][]interface{}{
		{"IP Address", "Hostname", "VM Type", "Vendor", "MAC Address", "Services"},
	}
	for _, host := range views {
		if !host.IsVM {
			continue
		}
		names := make([]string, 0, len(host.Services))
		for _, svc := range host.Services {
			names = append(names, fmt.Sprintf("%d/%s", svc.Port, svc.Service))
		}
		vms = append(vms, []interface{}{
			host.IP, host.Hostname, host.VMType, host.Vendor, host.MAC, strings.Join(names, ", "),
		})
	}
	if err := writeSheet(f, "Virtual Machines", vms, headerStyle, 60); err != nil {
		return "", err
	}

	index, err := f.GetSheetIndex("Summary")
	if err != nil {
		return "", err
	}
	f.SetActiveSheet(index)

	if err := f.SaveAs(path); err != nil {
		return "", err
	}
	return path, nil
}

// writeSheet fills a sheet from rows (header first), styles the header and
// sizes each column to its widest cell plus padding, capped at widthCap.
func writeSheet(f *excelize.File, name string, rows [][]interface{}, headerStyle int, widthCap float64) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &rows[i]); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}

	lastHeader, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for col := range rows[0] {
		longest := 0
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			if l := len(fmt.Sprint(row[col])); l > longest {
				longest = l
			}
		}
		width := float64(longest + 2)
		if width > widthCap {
			width = widthCap
		}
		letter, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, letter, letter, width); err != nil {
			return err
		}
	}
	return nil
}
