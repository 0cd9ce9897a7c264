package application

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	seating "chirho-events/internal/seating/domain"
)

// Column is a logical import column.
type Column string

const (
	ColumnSection         Column = "section"
	ColumnRegistrationID  Column = "registration_id"
	ColumnGroupName       Column = "group_name"
	ColumnParticipantName Column = "participant_name"
	ColumnCapacity        Column = "capacity"
	ColumnParticipantType Column = "participant_type"
)

// resolveOrder is the order columns claim headers in; a header is claimed once.
var resolveOrder = []Column{
	ColumnSection,
	ColumnRegistrationID,
	ColumnGroupName,
	ColumnParticipantName,
	ColumnCapacity,
	ColumnParticipantType,
}

// Layout maps each column to alternative term sets. A header matches a term
// set when it contains every term.
type Layout struct {
	SectionLabel string                `yaml:"section_label"`
	Columns      map[Column][][]string `yaml:"columns"`
}

// DefaultLayouts returns the built-in layouts per import kind.
func DefaultLayouts() map[seating.Kind]Layout {
	shared := map[Column][][]string{
		ColumnRegistrationID:  {{"registration", "id"}, {"confirmation"}, {"reg", "id"}},
		ColumnGroupName:       {{"group"}, {"church"}, {"parish"}},
		ColumnParticipantName: {{"participant", "name"}, {"attendee", "name"}, {"name"}},
		ColumnParticipantType: {{"participant", "type"}, {"type"}},
	}

	seatingColumns := copyColumns(shared)
	seatingColumns[ColumnSection] = [][]string{{"section", "name"}, {"section"}}
	seatingColumns[ColumnCapacity] = [][]string{{"capacity"}}

	housingColumns := copyColumns(shared)
	housingColumns[ColumnSection] = [][]string{{"room"}, {"housing"}, {"cabin"}, {"dorm"}}
	housingColumns[ColumnCapacity] = [][]string{{"capacity"}, {"beds"}}

	return map[seating.Kind]Layout{
		seating.KindSeating: {SectionLabel: "section name", Columns: seatingColumns},
		seating.KindHousing: {SectionLabel: "room", Columns: housingColumns},
	}
}

// LoadLayouts reads a YAML overlay on top of the default layouts. Columns
// present in the file replace the defaults for that kind; an empty path
// returns the defaults.
func LoadLayouts(path string) (map[seating.Kind]Layout, error) {
	layouts := DefaultLayouts()
	if path == "" {
		return layouts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return overlayLayouts(layouts, data)
}

func overlayLayouts(layouts map[seating.Kind]Layout, data []byte) (map[seating.Kind]Layout, error) {
	var overlay map[seating.Kind]Layout
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("import mapping: %w", err)
	}
	for kind, custom := range overlay {
		if _, err := seating.ParseKind(string(kind)); err != nil {
			return nil, fmt.Errorf("import mapping: unknown kind %q", kind)
		}
		base := layouts[kind]
		if custom.SectionLabel != "" {
			base.SectionLabel = custom.SectionLabel
		}
		columns := copyColumns(base.Columns)
		for column, sets := range custom.Columns {
			if !knownColumn(column) {
				return nil, fmt.Errorf("import mapping: unknown column %q", column)
			}
			columns[column] = normalizeSets(sets)
		}
		base.Columns = columns
		layouts[kind] = base
	}
	return layouts, nil
}

// ColumnIndex holds the header position of each resolved column, -1 when absent.
type ColumnIndex map[Column]int

// Get returns the trimmed cell of column in cells, or "" when absent.
func (idx ColumnIndex) Get(cells []string, column Column) string {
	i, ok := idx[column]
	if !ok || i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

// ResolveColumns maps header cells to columns by case-insensitive term containment.
func ResolveColumns(header []string, layout Layout) (ColumnIndex, error) {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(cell))
	}
	claimed := make([]bool, len(header))
	idx := make(ColumnIndex, len(resolveOrder))
	for _, column := range resolveOrder {
		idx[column] = -1
		for _, terms := range layout.Columns[column] {
			if pos := findHeader(normalized, claimed, terms); pos >= 0 {
				idx[column] = pos
				claimed[pos] = true
				break
			}
		}
	}

	var missing []string
	if idx[ColumnSection] < 0 {
		label := layout.SectionLabel
		if label == "" {
			label = string(ColumnSection)
		}
		missing = append(missing, label)
	}
	if idx[ColumnParticipantName] < 0 && idx[ColumnRegistrationID] < 0 {
		missing = append(missing, "participant name or registration id")
	}
	if len(missing) > 0 {
		return idx, &seating.MissingColumnError{Columns: missing}
	}
	return idx, nil
}

func findHeader(headers []string, claimed []bool, terms []string) int {
	if len(terms) == 0 {
		return -1
	}
	for i, header := range headers {
		if claimed[i] || header == "" {
			continue
		}
		matched := true
		for _, term := range terms {
			if !strings.Contains(header, term) {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

func knownColumn(column Column) bool {
	for _, known := range resolveOrder {
		if known == column {
			return true
		}
	}
	return false
}

func normalizeSets(sets [][]string) [][]string {
	out := make([][]string, 0, len(sets))
	for _, set := range sets {
		terms := make([]string, 0, len(set))
		for _, term := range set {
			if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
				terms = append(terms, term)
			}
		}
		if len(terms) > 0 {
			out = append(out, terms)
		}
	}
	return out
}

func copyColumns(columns map[Column][][]string) map[Column][][]string {
	out := make(map[Column][][]string, len(columns))
	for column, sets := range columns {
		out[column] = sets
	}
	return out
}
