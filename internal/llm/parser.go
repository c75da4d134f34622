package llm

import (
	"strings"

	"github.com/triage-edge-server/internal/domain"
)

// TriageFields is the structured content extracted from a generative
// response. Fields missing from the response keep whatever values the
// caller seeded as defaults; the parser never fails.
type TriageFields struct {
	Specialty  string
	Conditions []string
	Urgency    domain.Urgency
	RedFlags   []string
	Timeframe  string
	Questions  []string
}

// Field labels. Matching is case-insensitive and the label may appear
// anywhere in a line.
const (
	labelSpecialty  = "SPECIALTY:"
	labelConditions = "CONDITIONS:"
	labelUrgency    = "URGENCY:"
	labelRedFlags   = "RED_FLAGS:"
	labelTimeframe  = "TIMEFRAME:"
	labelQuestions  = "QUESTIONS:"
)

// ParseTriageResponse extracts labeled fields from semi-free generative
// output. Each line is matched against the known labels; the value is
// whatever follows the label on that line. A literal "none" clears a field
// rather than storing the string. Malformed or partial responses degrade to
// the seeded defaults.
func ParseTriageResponse(text string, defaults TriageFields) TriageFields {
	out := defaults

	for _, line := range strings.Split(text, "\n") {
		if v, ok := fieldValue(line, labelSpecialty); ok {
			if v != "" {
				out.Specialty = v
			}
		}
		if v, ok := fieldValue(line, labelConditions); ok {
			if items := splitList(v); len(items) > 0 {
				out.Conditions = items
			}
		}
		if v, ok := fieldValue(line, labelUrgency); ok {
			if u, valid := normalizeUrgency(v); valid {
				out.Urgency = u
			}
		}
		if v, ok := fieldValue(line, labelRedFlags); ok {
			out.RedFlags = splitList(v)
		}
		if v, ok := fieldValue(line, labelTimeframe); ok {
			if v != "" {
				out.Timeframe = v
			}
		}
		if v, ok := fieldValue(line, labelQuestions); ok {
			if items := splitList(v); len(items) > 0 {
				out.Questions = items
			}
		}
	}

	return out
}

// fieldValue finds a label anywhere in the line, case-insensitively, and
// returns the trimmed remainder. "none" maps to an empty value.
func fieldValue(line, label string) (string, bool) {
	idx := indexFold(line, label)
	if idx < 0 {
		return "", false
	}
	value := strings.TrimSpace(line[idx+len(label):])
	value = strings.Trim(value, "*_`")
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "none") {
		return "", true
	}
	return value, true
}

// indexFold returns the byte offset of the first case-insensitive match of
// label in s, or -1. The offset is computed on s itself so it stays valid
// for slicing even when the line carries multi-byte runes whose upper-case
// form has a different UTF-8 width. Labels are ASCII.
func indexFold(s, label string) int {
	for i := 0; i+len(label) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(label)], label) {
			return i
		}
	}
	return -1
}

// splitList splits on commas and semicolons, trims entries and drops empty
// ones.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// normalizeUrgency maps a free-text urgency onto the supported levels.
func normalizeUrgency(value string) (domain.Urgency, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.Contains(v, "emergen"):
		return domain.UrgencyEmergency, true
	case strings.Contains(v, "urgent"):
		return domain.UrgencyUrgent, true
	case strings.Contains(v, "routine"):
		return domain.UrgencyRoutine, true
	default:
		return "", false
	}
}

// FindSpecialty scans free text for a supported specialty name or a known
// alias and returns the canonical name. Falls back to the default specialty.
func FindSpecialty(text string) string {
	lower := strings.ToLower(text)
	for _, s := range domain.Specialties {
		if strings.Contains(lower, strings.ToLower(s)) {
			return s
		}
	}
	for _, a := range specialtyAliases {
		if strings.Contains(lower, a.alias) {
			return a.specialty
		}
	}
	return domain.DefaultSpecialty
}

// specialtyAliases maps common generative phrasings onto canonical
// specialties. Ordered: the first alias found in the text wins.
var specialtyAliases = []struct {
	alias     string
	specialty string
}{
	{"mental health", "Behavioral Health"},
	{"psychiatry", "Behavioral Health"},
	{"heart", "Cardiology"},
	{"cardiac", "Cardiology"},
	{"skin", "Dermatology"},
	{"digestive", "Gastroenterology"},
	{"stomach", "Gastroenterology"},
	{"neuro", "Neurology"},
	{"cancer", "Oncology"},
	{"ortho", "Orthopedic Surgery"},
	{"lung", "Pulmonology"},
	{"bladder", "Urology"},
	{"kidney", "Urology"},
	{"gynecology", "Women's Health"},
	{"ob/gyn", "Women's Health"},
}
