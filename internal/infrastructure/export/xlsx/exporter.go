package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

const (
	sheetName   = "Results"
	contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []any{"ID", "Title", "Price", "Rating", "Reviews", "Prime", "Sponsored", "URL", "Image"}

// Exporter writes a result set as a single-sheet workbook.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ContentType() string {
	return contentType
}

func (e *Exporter) Export(results domain.SearchResults, w io.Writer) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "I1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, p := range results.Products {
		row := i + 2
		image := ""
		if p.ImageURL != nil {
			image = *p.ImageURL
		}
		values := []any{p.ID, p.Title, p.Price.Value, p.Rating, p.ReviewCount, p.IsPrimeEligible, p.IsSponsored, p.URL, image}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		urlCell, _ := excelize.CoordinatesToCellName(8, row)
		if err := f.SetCellHyperLink(sheetName, urlCell, p.URL, "External"); err != nil {
			return fmt.Errorf("link row %d: %w", row, err)
		}
	}

	if err := f.SetColWidth(sheetName, "B", "B", 60); err != nil {
		return fmt.Errorf("set title width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "H", "I", 40); err != nil {
		return fmt.Errorf("set url width: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Search results: " + results.Query,
		Creator: "shopping-assistant",
	}); err != nil {
		return fmt.Errorf("set doc props: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
