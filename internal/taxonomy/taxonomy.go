// Package taxonomy maps atomic business categories (what a point of interest
// calls itself) to the super-categories the scoring pipeline operates on. The
// taxonomy ships embedded and is immutable for the process lifetime.
package taxonomy

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var rawTaxonomy []byte

// ErrUnknownCategory is returned when a name resolves to neither a
// super-category nor any atomic category in the taxonomy.
var ErrUnknownCategory = eris.New("taxonomy: unknown category")

// CatchAll is the super-category that absorbs categories outside the taxonomy.
const CatchAll = "Other / Misc"

// SuperCategory is one scoring domain with its complementary neighbours.
type SuperCategory struct {
	Name          string   `yaml:"name"`
	Categories    []string `yaml:"categories"`
	Complementary []string `yaml:"complementary"`
	Examples      []string `yaml:"examples"`
}

type taxonomyFile struct {
	SuperCategories []SuperCategory `yaml:"super_categories"`
}

var (
	loadOnce sync.Once
	loadErr  error

	superByName    map[string]*SuperCategory // lower-cased super-category name
	superForAtomic map[string]*SuperCategory // lower-cased atomic category
	orderedSupers  []string
)

func load() error {
	loadOnce.Do(func() {
		var f taxonomyFile
		if err := yaml.Unmarshal(rawTaxonomy, &f); err != nil {
			loadErr = eris.Wrap(err, "taxonomy: parse embedded taxonomy")
			return
		}
		superByName = make(map[string]*SuperCategory, len(f.SuperCategories))
		superForAtomic = make(map[string]*SuperCategory)
		for i := range f.SuperCategories {
			sc := &f.SuperCategories[i]
			superByName[strings.ToLower(sc.Name)] = sc
			orderedSupers = append(orderedSupers, sc.Name)
			for _, c := range sc.Categories {
				superForAtomic[strings.ToLower(c)] = sc
			}
		}
	})
	return loadErr
}

// Resolve maps a user-supplied category name, case-insensitively, to its
// super-category. Both super-category names ("Food & Beverages") and atomic
// categories ("cafe") resolve. Unknown names fail with ErrUnknownCategory.
func Resolve(name string) (SuperCategory, error) {
	if err := load(); err != nil {
		return SuperCategory{}, err
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if sc, ok := superByName[key]; ok {
		return *sc, nil
	}
	if sc, ok := superForAtomic[key]; ok {
		return *sc, nil
	}
	return SuperCategory{}, eris.Wrapf(ErrUnknownCategory, "%q", name)
}

// SuperCategories returns all super-category names in taxonomy order.
func SuperCategories() ([]string, error) {
	if err := load(); err != nil {
		return nil, err
	}
	out := make([]string, len(orderedSupers))
	copy(out, orderedSupers)
	return out, nil
}

// Complementary returns the complementary super-category names for name, or
// ErrUnknownCategory.
func Complementary(name string) ([]string, error) {
	sc, err := Resolve(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(sc.Complementary))
	copy(out, sc.Complementary)
	return out, nil
}

// Examples returns suggested business names for a super-category.
func Examples(name string) ([]string, error) {
	sc, err := Resolve(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(sc.Examples))
	copy(out, sc.Examples)
	return out, nil
}
