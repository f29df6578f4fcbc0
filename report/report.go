// Package report aggregates classification tallies over the metadata index
// and exports them, together with graph relationship counts, as a summary
// workbook.
package report

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/rfplabs/docgraph/document"
)

// Summary holds the whole-corpus aggregates served by the summary surface.
type Summary struct {
	RelationCounts map[string]int `json:"relation_counts"`
	Groups         map[string]int `json:"groups"`
	Sectors        map[string]int `json:"sectors"`
	Services       map[string]int `json:"services"`
}

// Tally counts classification values across records. Each element of
// service_offerings is an independent countable unit; there is no
// deduplication or tie-break across a document's list. Error-variant
// records are skipped.
func Tally(records []document.Record) (groups, sectors, services map[string]int) {
	groups = make(map[string]int)
	sectors = make(map[string]int)
	services = make(map[string]int)

	for _, r := range records {
		if r.Doc == nil {
			continue
		}
		cls := r.Doc.Classification

		grp := cls.GroupPriority
		if grp == "" {
			grp = document.Unknown
		}
		groups[grp]++

		sect := cls.Sector
		if sect == "" {
			sect = document.Unknown
		}
		sectors[sect]++

		if len(cls.ServiceOfferings) == 0 {
			services[document.Unknown]++
			continue
		}
		for _, svc := range cls.ServiceOfferings {
			if svc == "" {
				svc = document.Unknown
			}
			services[svc]++
		}
	}
	return groups, sectors, services
}

// sheet layout: name + the counts it renders.
type sheetSpec struct {
	name   string
	header string
	counts map[string]int
}

// WriteWorkbook writes the summary as an xlsx workbook with one sheet per
// aggregate.
func WriteWorkbook(path string, s *Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []sheetSpec{
		{"Relationships", "Relationship", s.RelationCounts},
		{"Groups", "Group Priority", s.Groups},
		{"Sectors", "Sector", s.Sectors},
		{"Services", "Service Offering", s.Services},
	}

	for i, spec := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", spec.name); err != nil {
				return fmt.Errorf("renaming sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(spec.name); err != nil {
				return fmt.Errorf("creating sheet %s: %w", spec.name, err)
			}
		}
		if err := writeCounts(f, spec); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// writeCounts renders a two-column name/count table, sorted by name for a
// stable layout.
func writeCounts(f *excelize.File, spec sheetSpec) error {
	if err := f.SetCellValue(spec.name, "A1", spec.header); err != nil {
		return err
	}
	if err := f.SetCellValue(spec.name, "B1", "Count"); err != nil {
		return err
	}

	names := make([]string, 0, len(spec.counts))
	for name := range spec.counts {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		row := i + 2
		if err := f.SetCellValue(spec.name, fmt.Sprintf("A%d", row), name); err != nil {
			return err
		}
		if err := f.SetCellValue(spec.name, fmt.Sprintf("B%d", row), spec.counts[name]); err != nil {
			return err
		}
	}
	return nil
}
