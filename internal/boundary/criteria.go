package boundary

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/basescore"
	"github.com/siteatlas/siteatlas/internal/fetcher"
)

// LoadCriteriaXLSX reads an area criteria workbook. The first row is the
// header: a "name" column plus Score_* criterion columns, same layout as the
// CSV form. Blank or malformed cells score zero.
func LoadCriteriaXLSX(path, sheetName string) (*basescore.Provider, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheetName})
	if err != nil {
		return nil, eris.Wrap(err, "boundary: read criteria workbook")
	}
	if len(rows) == 0 {
		return nil, eris.New("boundary: criteria workbook is empty")
	}

	header := rows[0]
	nameCol := -1
	scoreCols := map[int]string{}
	for i, col := range header {
		col = strings.TrimSpace(col)
		if strings.EqualFold(col, "name") {
			nameCol = i
		}
		if strings.HasPrefix(col, "Score_") {
			scoreCols[i] = col
		}
	}
	if nameCol < 0 {
		return nil, eris.New("boundary: criteria workbook has no name column")
	}
	if len(scoreCols) == 0 {
		return nil, eris.New("boundary: criteria workbook has no Score_ columns")
	}

	var areas []basescore.Area
	for _, record := range rows[1:] {
		if nameCol >= len(record) || strings.TrimSpace(record[nameCol]) == "" {
			continue
		}
		area := basescore.Area{
			Name:     strings.TrimSpace(record[nameCol]),
			Criteria: make(map[string]float64, len(scoreCols)),
		}
		for i, col := range scoreCols {
			if i >= len(record) {
				continue
			}
			v, parseErr := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if parseErr != nil {
				v = 0
			}
			area.Criteria[col] = v
		}
		areas = append(areas, area)
	}

	zap.L().Info("loaded criteria workbook",
		zap.String("path", path),
		zap.Int("areas", len(areas)),
		zap.Int("criteria", len(scoreCols)))

	return basescore.NewProvider(areas), nil
}
