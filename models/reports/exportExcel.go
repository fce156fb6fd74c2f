package reports

import (
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
)

// BuildReconciliationWorkbook renders the comparison rows into a
// spreadsheet for the operators doing the stocktake.
func BuildReconciliationWorkbook(rows []ReconciliationRow) (*excelize.File, error) {
	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return nil, err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "ProductId")
	f.SetCellValue(sheetName, "B1", "ProductName")
	f.SetCellValue(sheetName, "C1", "Unit")
	f.SetCellValue(sheetName, "D1", "AccountingQty")
	f.SetCellValue(sheetName, "E1", "LotQty")
	f.SetCellValue(sheetName, "F1", "Diff")
	f.SetCellValue(sheetName, "G1", "Matched")

	// Add data
	for i, d := range rows {
		rowNo := fmt.Sprint(i + 2)
		f.SetCellValue(sheetName, "A"+rowNo, d.ProductId)
		f.SetCellValue(sheetName, "B"+rowNo, d.ProductName)
		f.SetCellValue(sheetName, "C"+rowNo, d.UnitName)
		f.SetCellValue(sheetName, "D"+rowNo, d.AccountingQty.String())
		f.SetCellValue(sheetName, "E"+rowNo, d.LotQty.String())
		f.SetCellValue(sheetName, "F"+rowNo, d.Diff.String())
		f.SetCellValue(sheetName, "G"+rowNo, d.Matched)
	}

	return f, nil
}

func WriteExcelResponse(w http.ResponseWriter, f *excelize.File, filename string) error {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	return f.Write(w)
}
