package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/triage-edge-server/internal/domain"
)

// DoseResult is one computed dose recommendation.
type DoseResult struct {
	Drug       string `json:"drug"`
	Indication string `json:"indication"`
	Dose       string `json:"dose"`
	Route      string `json:"route,omitempty"`
	MaxDose    string `json:"max_dose,omitempty"`
	Pediatric  bool   `json:"pediatric"`
}

var (
	perKgPattern = regexp.MustCompile(`(?i)([\d.]+)\s*(mg|mcg|ml)/kg`)
	maxPattern   = regexp.MustCompile(`(?i)max(?:imum)?\s*:?\s*([\d.]+)\s*(mg|mcg|ml)?`)
)

// CalculateDose looks up the dosing entry for a drug and indication and
// returns the adult formula or, for pediatric patients with a known weight,
// the computed per-kilogram dose.
func (e *Engine) CalculateDose(drugName, indication string, patient *domain.PatientInfo) (*DoseResult, error) {
	entry := e.catalog.FindDrug(drugName)
	if entry == nil {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("unknown drug %q", drugName))
	}

	dose := matchDoseEntry(entry, indication)
	if dose == nil {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("no dosing for %q with indication %q", entry.Name, indication))
	}

	result := &DoseResult{
		Drug:       entry.Name,
		Indication: dose.Indication,
		Dose:       dose.Adult,
		MaxDose:    entry.MaxDose,
	}
	if len(entry.Routes) > 0 {
		result.Route = entry.Routes[0]
	}

	if patient != nil && patient.IsPediatric() && dose.Pediatric != "" {
		result.Pediatric = true
		result.Dose = ComputePediatricDose(dose.Pediatric, patient.WeightKg)
	}
	return result, nil
}

// ComputePediatricDose evaluates a per-kilogram formula for a patient
// weight. The formula must name its unit as mg/kg, mcg/kg or mL/kg; any
// MAX clamp in the formula caps the computed amount and is echoed in the
// output. Formulas that do not parse, or an unknown weight, return the
// formula verbatim.
func ComputePediatricDose(formula string, weightKg float64) string {
	if weightKg <= 0 {
		return formula
	}
	m := perKgPattern.FindStringSubmatch(formula)
	if m == nil {
		return formula
	}
	perKg, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return formula
	}
	unit := strings.ToLower(m[2])
	if unit == "ml" {
		unit = "mL"
	}

	amount := perKg * weightKg
	suffix := ""
	if mm := maxPattern.FindStringSubmatch(formula); mm != nil {
		if maxVal, err := strconv.ParseFloat(mm[1], 64); err == nil {
			if amount > maxVal {
				amount = maxVal
			}
			maxUnit := mm[2]
			if maxUnit == "" {
				maxUnit = unit
			}
			suffix = fmt.Sprintf(" - MAX %s%s", trimFloat(maxVal), maxUnit)
		}
	}

	return fmt.Sprintf("%.2f%s (%s)%s", amount, unit, formula, suffix)
}

func matchDoseEntry(entry *domain.Drug, indication string) *domain.DoseEntry {
	ind := strings.ToLower(strings.TrimSpace(indication))
	for i := range entry.Dosing {
		di := strings.ToLower(entry.Dosing[i].Indication)
		if di == ind || strings.Contains(di, ind) || strings.Contains(ind, di) {
			return &entry.Dosing[i]
		}
	}
	if ind == "" && len(entry.Dosing) > 0 {
		return &entry.Dosing[0]
	}
	return nil
}

func trimFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return s
}
