package transfer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"preppertrack/internal/inventory"
	"preppertrack/internal/sanitize"
)

// FormatVersion is written to every JSON backup.
const FormatVersion = "1.0"

const (
	sheetInventory = "Inventory"
	sheetHousehold = "Household Members"
)

var (
	inventoryHeader = []string{"Name", "Category", "Quantity", "Unit", "Expiration Date", "Location", "Min Quantity", "Tags", "Notes"}
	householdHeader = []string{"Name", "Age", "Relationship", "Dietary Restrictions", "Medical Conditions", "Daily Calories", "Daily Water (L)"}
)

func BackupFileName(now time.Time) string {
	return "preppertrack-backup-" + now.Format(sanitize.DateLayout) + ".json"
}

// ExportFileName returns the dated file name for ext ("csv" or "xlsx").
func ExportFileName(now time.Time, ext string) string {
	return "preppertrack-export-" + now.Format(sanitize.DateLayout) + "." + ext
}

type backupDoc struct {
	Inventory                 any    `json:"inventory"`
	Household                 any    `json:"household"`
	HouseholdGroups           any    `json:"householdGroups"`
	Settings                  any    `json:"settings"`
	RationingScenarios        any    `json:"rationingScenarios"`
	SelectedRationingScenario any    `json:"selectedRationingScenario"`
	ExportedAt                string `json:"exportedAt"`
	Version                   string `json:"version"`
}

// ExportJSON writes snap as a sanitized, indented backup document that
// ParseImport accepts.
func ExportJSON(w io.Writer, snap inventory.Snapshot, now time.Time) error {
	doc := backupDoc{ExportedAt: now.UTC().Format(time.RFC3339), Version: FormatVersion}
	var err error
	if doc.Inventory, err = sanitized(nonNil(snap.Inventory)); err != nil {
		return err
	}
	if doc.Household, err = sanitized(nonNil(snap.Household)); err != nil {
		return err
	}
	if doc.HouseholdGroups, err = sanitized(nonNil(snap.Groups)); err != nil {
		return err
	}
	if doc.Settings, err = sanitized(snap.Settings); err != nil {
		return err
	}
	if doc.RationingScenarios, err = sanitized(nonNil(snap.Scenarios)); err != nil {
		return err
	}
	if snap.SelectedScenario != "" {
		doc.SelectedRationingScenario = sanitize.Text(snap.SelectedScenario)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// sanitized round-trips v through its JSON form and sanitize.JSONData.
func sanitized(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, err
	}
	return sanitize.JSONData(tree), nil
}

// ExportCSV writes the inventory and household sections. Every field is
// quoted with embedded quotes doubled.
func ExportCSV(w io.Writer, snap inventory.Snapshot) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("## Inventory\n")
	writeCSVRow(bw, inventoryHeader)
	for _, it := range snap.Inventory {
		writeCSVRow(bw, inventoryRow(it))
	}
	bw.WriteString("\n## Household Members\n")
	writeCSVRow(bw, householdHeader)
	for _, m := range snap.Household {
		writeCSVRow(bw, householdRow(m))
	}
	return bw.Flush()
}

// QuoteCSV quotes one field.
func QuoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func writeCSVRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString(QuoteCSV(f))
	}
	w.WriteByte('\n')
}

func inventoryRow(it inventory.Item) []string {
	return []string{
		it.Name, it.Category, num(it.Quantity), it.Unit, it.ExpirationDate,
		it.Location, num(it.MinQuantity), strings.Join(it.Tags, "; "), it.Notes,
	}
}

func householdRow(m inventory.HouseholdMember) []string {
	return []string{
		m.Name, num(m.Age), m.Relationship,
		strings.Join(m.DietaryRestrictions, "; "), strings.Join(m.MedicalConditions, "; "),
		num(m.DailyCalories), num(m.DailyWaterLiters),
	}
}

// ExportXLSX writes the same two sections as worksheets.
func ExportXLSX(w io.Writer, snap inventory.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetInventory); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetHousehold); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	invRows := make([][]string, 0, len(snap.Inventory))
	for _, it := range snap.Inventory {
		invRows = append(invRows, inventoryRow(it))
	}
	if err := writeSheet(f, sheetInventory, inventoryHeader, invRows, header); err != nil {
		return err
	}
	hhRows := make([][]string, 0, len(snap.Household))
	for _, m := range snap.Household {
		hhRows = append(hhRows, householdRow(m))
	}
	if err := writeSheet(f, sheetHousehold, householdHeader, hhRows, header); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	for i, r := range rows {
		if err := setRow(f, sheet, i+2, r); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	return nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
