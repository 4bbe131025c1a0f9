package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/riqlabs/labmatch-cli/internal/model"
)

// exportColumns is the flat column layout shared by the CSV and XLSX exports.
var exportColumns = []string{
	"name", "h_index", "works_count", "cited_by_count",
	"email", "email_source", "email_confidence", "email_method",
	"website", "website_source", "website_confidence", "website_type",
	"fields", "research_topics", "orcid", "openalex_id",
}

// Exporter writes the final report to disk in several formats.
type Exporter struct {
	dir string
}

// NewExporter creates an exporter rooted at dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

func exportRow(rec model.FacultyRecord) []string {
	topics := make([]string, 0, 5)
	for _, t := range rec.Research.Topics {
		topics = append(topics, t.Name)
		if len(topics) == 5 {
			break
		}
	}
	return []string{
		rec.Name,
		strconv.Itoa(rec.HIndex),
		strconv.Itoa(rec.WorksCount),
		strconv.Itoa(rec.CitedByCount),
		rec.Email.Value,
		string(rec.Email.Source),
		string(rec.Email.Confidence),
		rec.Email.ExtractionMethod,
		rec.Website.Value,
		string(rec.Website.Source),
		string(rec.Website.Confidence),
		rec.Website.PageType,
		strings.Join(rec.Research.Fields, "; "),
		strings.Join(topics, "; "),
		rec.ORCID,
		rec.OpenAlexID,
	}
}

// Export writes JSON, CSV, and XLSX files named by institution and timestamp.
// Returns the written paths.
func (e *Exporter) Export(report *Report) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "export: create output dir")
	}

	slug := strings.ToLower(strings.ReplaceAll(report.Metadata.Institution, " ", "_"))
	stamp := time.Now().Format("20060102_150405")
	base := filepath.Join(e.dir, slug+"_"+stamp)

	jsonPath := base + ".json"
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal report")
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return nil, eris.Wrap(err, "export: write json")
	}

	csvPath := base + ".csv"
	if err := e.writeCSV(csvPath, report); err != nil {
		return nil, err
	}

	xlsxPath := base + ".xlsx"
	if err := e.writeXLSX(xlsxPath, report); err != nil {
		return nil, err
	}

	paths := []string{jsonPath, csvPath, xlsxPath}
	zap.L().Info("report exported", zap.Strings("paths", paths))
	return paths, nil
}

func (e *Exporter) writeCSV(path string, report *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(exportColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, rec := range report.Faculty {
		if err := w.Write(exportRow(rec)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

func (e *Exporter) writeXLSX(path string, report *Report) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Faculty")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range exportColumns {
		header.AddCell().SetString(col)
	}
	for _, rec := range report.Faculty {
		row := sheet.AddRow()
		for _, val := range exportRow(rec) {
			row.AddCell().SetString(val)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	return nil
}
