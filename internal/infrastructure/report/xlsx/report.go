package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

const (
	SheetSummary    = "Summary"
	SheetLots       = "Lots"
	SheetFiles      = "Files"
	SheetInventory  = "Inventory"
	SheetDuplicates = "Duplicates"
)

// Writer renders run and audit reports as XLSX workbooks.
type Writer struct{}

func New() *Writer {
	return &Writer{}
}

// WriteRunReport writes one row per site on Summary, one row per aggregated
// lot on Lots and one row per classified file on Files.
func (w *Writer) WriteRunReport(ctx context.Context, path string, report domain.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	summary := [][]any{{"Site", "Status", "Files", "Unclassified", "Lots", "Complete lots", "Avg completeness", "Outputs", "Error"}}
	lots := [][]any{{"Site", "Lot", "Completeness", "Required", "Available", "Missing"}}
	files := [][]any{{"Site", "File", "Location", "Category", "Number", "Doc type", "Score"}}

	for _, site := range report.Sites {
		errText := ""
		if site.Err != nil {
			errText = site.Err.Error()
		}
		summary = append(summary, []any{
			site.Slug,
			string(site.Status()),
			len(site.Files),
			site.UnclassifiedCount(),
			len(site.Aggregated),
			site.CompleteLots(),
			site.AverageCompleteness(),
			strings.Join(site.Outputs, ", "),
			errText,
		})
		for _, lot := range site.Aggregated {
			lots = append(lots, []any{
				site.Slug,
				lot.Lot,
				lot.Completeness,
				strings.Join(lot.Required, ", "),
				strings.Join(lot.Available, ", "),
				strings.Join(lot.Missing, ", "),
			})
		}
		for _, file := range site.Files {
			number := ""
			if file.Classification.HasNumber() {
				number = fmt.Sprint(file.Classification.NumberValue())
			}
			files = append(files, []any{
				site.Slug,
				file.File.Name,
				file.File.Location,
				string(file.Classification.Category),
				number,
				file.Classification.DocType,
				file.Classification.Score,
			})
		}
	}

	if err := writeSheets(f, []sheet{
		{name: SheetSummary, rows: summary},
		{name: SheetLots, rows: lots},
		{name: SheetFiles, rows: files},
	}); err != nil {
		return err
	}
	return save(f, path)
}

// WriteAuditReport lists the inventory and every duplicate set.
func (w *Writer) WriteAuditReport(ctx context.Context, path string, inventory []domain.FileRecord, duplicates []domain.DuplicateSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	files := [][]any{{"ID", "Name", "Location", "MIME type", "Size", "Modified", "MD5"}}
	for _, file := range inventory {
		modified := ""
		if !file.ModifiedTime.IsZero() {
			modified = file.ModifiedTime.UTC().Format("2006-01-02 15:04:05")
		}
		files = append(files, []any{file.ID, file.Name, file.Location, file.MimeType, file.Size, modified, file.MD5})
	}

	dups := [][]any{{"Key", "Copies", "ID", "Name", "Location", "Size"}}
	for _, set := range duplicates {
		for _, file := range set.Files {
			dups = append(dups, []any{set.Key, len(set.Files), file.ID, file.Name, file.Location, file.Size})
		}
	}

	if err := writeSheets(f, []sheet{
		{name: SheetInventory, rows: files},
		{name: SheetDuplicates, rows: dups},
	}); err != nil {
		return err
	}
	return save(f, path)
}

type sheet struct {
	name string
	rows [][]any
}

func writeSheets(f *excelize.File, sheets []sheet) error {
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("rename sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", s.name, r+1, err)
			}
		}
	}
	return nil
}

func save(f *excelize.File, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}
