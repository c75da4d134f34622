package protocol

import (
	"fmt"
	"strings"

	"github.com/triage-edge-server/internal/domain"
)

// crossReactions maps an allergen family the patient reports to drug name
// fragments known to cross-react with it.
var crossReactions = map[string][]string{
	"penicillin": {"amoxicillin", "ampicillin", "cephalexin"},
	"sulfa":      {"sulfamethoxazole", "furosemide"},
	"aspirin":    {"ibuprofen", "ketorolac", "naproxen"},
	"nsaid":      {"ibuprofen", "ketorolac", "naproxen", "aspirin"},
	"codeine":    {"morphine", "hydrocodone", "oxycodone"},
	"latex":      {},
}

// minSystolicForNitrates is the blood pressure floor below which
// nitrate-class drugs are held.
const minSystolicForNitrates = 90

// CheckProtocolMedications screens every medication in a protocol against
// the patient and returns all findings.
func (e *Engine) CheckProtocolMedications(p *domain.Protocol, patient *domain.PatientInfo) []domain.InteractionWarning {
	var warnings []domain.InteractionWarning
	for _, med := range p.Medications {
		warnings = append(warnings, e.CheckInteractions(med.Drug, patient)...)
	}
	return warnings
}

// CheckInteractions screens one drug against the patient's allergies,
// current medications and vitals. An unknown drug name still gets allergy
// screening by name; catalog-backed checks need a catalog entry.
func (e *Engine) CheckInteractions(drugName string, patient *domain.PatientInfo) []domain.InteractionWarning {
	var warnings []domain.InteractionWarning
	if patient == nil {
		return warnings
	}

	entry := e.catalog.FindDrug(drugName)
	name := drugName
	if entry != nil {
		name = entry.Name
	}

	warnings = append(warnings, allergyWarnings(name, entry, patient)...)
	if entry != nil {
		warnings = append(warnings, interactionWarnings(entry, patient)...)
		warnings = append(warnings, vitalsWarnings(entry, patient)...)
	}
	return warnings
}

// allergyWarnings covers direct name matches, the drug's documented
// allergen list, and cross-reaction families.
func allergyWarnings(name string, entry *domain.Drug, patient *domain.PatientInfo) []domain.InteractionWarning {
	var warnings []domain.InteractionWarning
	lowerName := strings.ToLower(name)

	for _, allergy := range patient.Allergies {
		a := strings.ToLower(strings.TrimSpace(allergy))
		if a == "" {
			continue
		}

		direct := strings.Contains(lowerName, a) || strings.Contains(a, lowerName)
		if !direct && entry != nil && entry.MatchesName(a) {
			direct = true
		}
		if !direct && entry != nil {
			for _, allergen := range entry.Allergens {
				al := strings.ToLower(allergen)
				if strings.Contains(al, a) || strings.Contains(a, al) {
					direct = true
					break
				}
			}
		}
		if direct {
			warnings = append(warnings, domain.InteractionWarning{
				Drug:     name,
				Severity: domain.SeveritySevere,
				Message:  fmt.Sprintf("Patient allergic to %s - do not administer %s", allergy, name),
				Category: domain.WarningAllergy,
			})
			continue
		}

		for family, fragments := range crossReactions {
			if !strings.Contains(a, family) {
				continue
			}
			for _, fragment := range fragments {
				if strings.Contains(lowerName, fragment) {
					warnings = append(warnings, domain.InteractionWarning{
						Drug:     name,
						Severity: domain.SeverityModerate,
						Message:  fmt.Sprintf("%s may cross-react with %s allergy", name, family),
						Category: domain.WarningAllergy,
					})
				}
			}
		}
	}
	return warnings
}

// interactionWarnings matches the drug's documented interactions against
// the patient's current medications by substring either direction.
func interactionWarnings(entry *domain.Drug, patient *domain.PatientInfo) []domain.InteractionWarning {
	var warnings []domain.InteractionWarning
	for _, med := range patient.CurrentMedications {
		m := strings.ToLower(strings.TrimSpace(med))
		if m == "" {
			continue
		}
		for _, interaction := range entry.Interactions {
			i := strings.ToLower(interaction.Drug)
			if strings.Contains(m, i) || strings.Contains(i, m) {
				warnings = append(warnings, domain.InteractionWarning{
					Drug:     entry.Name,
					Severity: interaction.Severity,
					Message:  fmt.Sprintf("%s interacts with %s: %s", entry.Name, med, interaction.Effect),
					Category: domain.WarningDrugDrug,
				})
			}
		}
	}
	return warnings
}

// vitalsWarnings applies the fixed vitals contraindications.
func vitalsWarnings(entry *domain.Drug, patient *domain.PatientInfo) []domain.InteractionWarning {
	var warnings []domain.InteractionWarning
	class := strings.ToLower(entry.Class)

	if strings.Contains(class, "nitrate") && patient.SystolicBP > 0 && patient.SystolicBP < minSystolicForNitrates {
		warnings = append(warnings, domain.InteractionWarning{
			Drug:     entry.Name,
			Severity: domain.SeveritySevere,
			Message:  fmt.Sprintf("Hold %s: systolic BP %d below %d", entry.Name, patient.SystolicBP, minSystolicForNitrates),
			Category: domain.WarningContraindication,
		})
	}
	if strings.Contains(class, "beta blocker") && patient.HeartRate > 0 && patient.HeartRate < 50 {
		warnings = append(warnings, domain.InteractionWarning{
			Drug:     entry.Name,
			Severity: domain.SeveritySevere,
			Message:  fmt.Sprintf("Hold %s: heart rate %d below 50", entry.Name, patient.HeartRate),
			Category: domain.WarningContraindication,
		})
	}
	return warnings
}

func normalizeDrugName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
