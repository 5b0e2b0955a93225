package businessflow

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// TrackingLinkColumn is appended to the rewritten output file.
const TrackingLinkColumn = "tracking_link"

// Column synonym sets. German list exports and English tool exports name the
// same columns differently; matching is case-insensitive.
var (
	colBusinessName = []string{"Namenszeile", "business_name", "company"}
	colStreet       = []string{"Straße", "Strasse", "Str", "Str."}
	colHouseNumber  = []string{"Hausnummer", "HNr", "Hnr", "Nr"}
	colPostcode     = []string{"PLZ", "Postleitzahl"}
	colCity         = []string{"Ort", "Stadt", "City"}
	colCountry      = []string{"Country", "Land"}
	colFirstName    = []string{"Entscheider 1 Vorname", "Vorname", "Anrede Vorname"}
	colLastName     = []string{"Entscheider 1 Nachname", "Nachname"}
	colPhonePrefix  = []string{"Vorwahl Telefon", "Vorwahl", "Telefon Vorwahl"}
	colPhone        = []string{"Telefonnummer", "Telefon", "Phone"}
	colEmail        = []string{"E-Mail-Adresse", "Email", "E-Mail", "Mail"}
	colSalutation   = []string{"Entscheider 1 Anrede", "Salutation"}
	colTemplate     = []string{"Template", "template"}
	colDestination  = []string{"destination", "url"}
	colExplicitID   = []string{"id", "link_id"}
)

// ColumnResolver maps synonym sets to the actual header spelling of one file.
// Built once per file so per-cell lookups are plain map hits.
type ColumnResolver struct {
	byLower map[string]string
}

func NewColumnResolver(header []string) *ColumnResolver {
	byLower := make(map[string]string, len(header))
	for _, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		if _, ok := byLower[lower]; !ok {
			byLower[lower] = h
		}
	}
	return &ColumnResolver{byLower: byLower}
}

// Key returns the file's actual spelling for the first matching synonym.
func (r *ColumnResolver) Key(names ...string) (string, bool) {
	for _, name := range names {
		if key, ok := r.byLower[strings.ToLower(name)]; ok {
			return key, true
		}
	}
	return "", false
}

// Get returns the trimmed cell value for the first matching synonym, or "".
func (r *ColumnResolver) Get(row map[string]string, names ...string) string {
	key, ok := r.Key(names...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(row[key])
}

// RowFile is a parsed CSV or XLSX input. Rows preserve the original cell
// spellings so the rewritten output file matches the input.
type RowFile struct {
	Path    string
	Header  []string
	Rows    []map[string]string
	IsExcel bool

	Resolver *ColumnResolver
}

// ReadRowFile loads a CSV (delimiter auto-detected, BOM tolerated) or XLSX
// file into memory. Import files top out at a few hundred thousand rows, well
// within memory.
func ReadRowFile(path string) (*RowFile, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return readCSVFile(path)
	case ".xlsx", ".xls":
		return readExcelFile(path)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedInputFormat)
	}
}

func readCSVFile(path string) (*RowFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	delimiter := detectDelimiter(sample(text, 4096))
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoHeaderRow)
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	return &RowFile{
		Path:     path,
		Header:   header,
		Rows:     rows,
		Resolver: NewColumnResolver(header),
	}, nil
}

func readExcelFile(path string) (*RowFile, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoHeaderRow)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoHeaderRow)
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	return &RowFile{
		Path:     path,
		Header:   header,
		Rows:     rows,
		IsExcel:  true,
		Resolver: NewColumnResolver(header),
	}, nil
}

// detectDelimiter picks the candidate occurring most often in the sample.
// Falls back to comma when the sample contains none of them.
func detectDelimiter(sample string) rune {
	candidates := []rune{',', ';', '\t', '|'}
	best, bestCount := ',', 0
	for _, c := range candidates {
		if n := strings.Count(sample, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func sample(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// OutputPath derives the rewritten file's path from the input path, e.g.
// "list.csv" becomes "list_with_links.csv".
func OutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	if strings.EqualFold(ext, ".xls") {
		ext = ".xlsx"
	}
	return base + "_with_links" + ext
}

// WriteWithLinks rewrites the input file with the given rows, placing the
// tracking_link column last. Blacklisted rows are already absent from rows.
func (f *RowFile) WriteWithLinks(rows []map[string]string) (string, error) {
	outPath := OutputPath(f.Path)
	header := outputHeader(f.Header, rows)
	if f.IsExcel {
		return outPath, writeExcelRows(outPath, header, rows)
	}
	return outPath, writeCSVRows(outPath, header, rows)
}

// outputHeader returns the original column order plus any columns that only
// appear on individual rows, with tracking_link forced last.
func outputHeader(header []string, rows []map[string]string) []string {
	seen := make(map[string]struct{}, len(header)+1)
	ordered := make([]string, 0, len(header)+1)
	for _, h := range header {
		if _, ok := seen[h]; ok || h == TrackingLinkColumn {
			continue
		}
		seen[h] = struct{}{}
		ordered = append(ordered, h)
	}
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; ok || k == TrackingLinkColumn {
				continue
			}
			seen[k] = struct{}{}
			ordered = append(ordered, k)
		}
	}
	return append(ordered, TrackingLinkColumn)
}

func writeCSVRows(path string, header []string, rows []map[string]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, h := range header {
			record[i] = row[h]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeExcelRows(path string, header []string, rows []map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return err
	}
	for i, row := range rows {
		cells := make([]any, len(header))
		for j, h := range header {
			cells[j] = row[h]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
