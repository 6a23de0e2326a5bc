// Package basescore computes the intrinsic attractiveness of candidate areas
// from a criteria workbook: per-area columns such as footfall, transit access
// and rent value, weighted per super-category.
package basescore

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Area holds one candidate area and its raw criteria columns (0-100 each).
type Area struct {
	Name     string
	Criteria map[string]float64
}

// AreaScore is the weighted base score for one area.
type AreaScore struct {
	Area  string
	Score float64
}

// Provider serves base scores from an in-memory criteria table.
type Provider struct {
	areas []Area
}

// NewProvider wraps an already-loaded criteria table.
func NewProvider(areas []Area) *Provider {
	return &Provider{areas: areas}
}

// criteria lists every column the weight tables reference.
var criteria = []string{
	"Score_Population_Density", "Score_Footfall", "Score_Transit",
	"Score_Traffic", "Score_Rent_Value", "Score_Parking",
	"Score_Night_Activity", "Score_Walkability", "Score_POI_Synergy",
	"Score_Safety",
}

// NeutralProvider builds a provider where every named area scores a flat 50
// under any weight table. Used when no criteria workbook is configured so
// ranking degrades to opportunity and ecosystem alone.
func NeutralProvider(names []string) *Provider {
	areas := make([]Area, 0, len(names))
	for _, name := range names {
		c := make(map[string]float64, len(criteria))
		for _, k := range criteria {
			c[k] = 50.0
		}
		areas = append(areas, Area{Name: name, Criteria: c})
	}
	return &Provider{areas: areas}
}

// LoadCSV reads a criteria table. The header must contain a "name" column;
// every column whose header starts with "Score_" is kept as a criterion.
// Blank or malformed numeric cells score zero for that criterion.
func LoadCSV(r io.Reader) (*Provider, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "basescore: read header")
	}

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
		return nil, eris.New("basescore: criteria table has no name column")
	}
	if len(scoreCols) == 0 {
		return nil, eris.New("basescore: criteria table has no Score_ columns")
	}

	var areas []Area
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "basescore: read row")
		}
		if nameCol >= len(record) || strings.TrimSpace(record[nameCol]) == "" {
			continue
		}
		area := Area{
			Name:     strings.TrimSpace(record[nameCol]),
			Criteria: make(map[string]float64, len(scoreCols)),
		}
		for i, col := range scoreCols {
			if i >= len(record) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				v = 0
			}
			area.Criteria[col] = v
		}
		areas = append(areas, area)
	}

	zap.L().Info("loaded area criteria table",
		zap.Int("areas", len(areas)),
		zap.Int("criteria", len(scoreCols)))

	return &Provider{areas: areas}, nil
}

// Len reports the number of loaded areas.
func (p *Provider) Len() int { return len(p.areas) }

// Score returns the weighted base score for one area under a super-category,
// or a neutral 50 when the area is not in the table.
func (p *Provider) Score(area, superCategory string) float64 {
	for i := range p.areas {
		if strings.EqualFold(p.areas[i].Name, area) {
			return weighted(p.areas[i], WeightsFor(superCategory))
		}
	}
	return 50.0
}

// TopAreas ranks all areas by weighted base score for a super-category and
// returns the best n, ties broken by name ascending.
func (p *Provider) TopAreas(superCategory string, n int) []AreaScore {
	w := WeightsFor(superCategory)
	out := make([]AreaScore, 0, len(p.areas))
	for i := range p.areas {
		out = append(out, AreaScore{
			Area:  p.areas[i].Name,
			Score: weighted(p.areas[i], w),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Area < out[j].Area
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func weighted(a Area, w map[string]float64) float64 {
	var score float64
	for criterion, weight := range w {
		if v, ok := a.Criteria[criterion]; ok {
			score += v * weight / 100
		}
	}
	return score
}
