package triage

import "strings"

// specialtyDefaults carries the provisional values filled in before
// generative enrichment completes.
type specialtyDefaults struct {
	BodySystem        string
	FollowUpTimeframe string
	Questions         []string
}

var defaultsBySpecialty = map[string]specialtyDefaults{
	"Behavioral Health": {
		BodySystem:        "psychiatric",
		FollowUpTimeframe: "within 1 week",
		Questions: []string{
			"How long have you been feeling this way?",
			"Have you had thoughts of harming yourself or others?",
		},
	},
	"Cardiology": {
		BodySystem:        "cardiovascular",
		FollowUpTimeframe: "within 24 hours",
		Questions: []string{
			"Does the pain spread to your arm, jaw, or back?",
			"Do you feel short of breath or sweaty?",
		},
	},
	"Dermatology": {
		BodySystem:        "integumentary",
		FollowUpTimeframe: "within 2 weeks",
		Questions: []string{
			"Has the spot changed in size, shape, or color?",
			"Is the area painful or itchy?",
		},
	},
	"Gastroenterology": {
		BodySystem:        "digestive",
		FollowUpTimeframe: "within 1 week",
		Questions: []string{
			"Is the discomfort related to eating?",
			"Have you noticed blood in your stool or vomit?",
		},
	},
	"Neurology": {
		BodySystem:        "nervous",
		FollowUpTimeframe: "within 48 hours",
		Questions: []string{
			"Did the symptoms come on suddenly or gradually?",
			"Any weakness, vision changes, or trouble speaking?",
		},
	},
	"Oncology": {
		BodySystem:        "multiple",
		FollowUpTimeframe: "within 1 week",
		Questions: []string{
			"Have you had unexplained weight loss or night sweats?",
			"How long has the lump or symptom been present?",
		},
	},
	"Orthopedic Surgery": {
		BodySystem:        "musculoskeletal",
		FollowUpTimeframe: "within 1 week",
		Questions: []string{
			"Was there an injury or fall before the pain started?",
			"Can you bear weight or use the joint normally?",
		},
	},
	"Pain Management": {
		BodySystem:        "musculoskeletal",
		FollowUpTimeframe: "within 1 week",
		Questions: []string{
			"How long has the pain persisted?",
			"What treatments have you already tried?",
		},
	},
	"Primary Care": {
		BodySystem:        "general",
		FollowUpTimeframe: "within 1 week",
		Questions: []string{
			"How long have the symptoms lasted?",
			"Have you had a fever?",
		},
	},
	"Pulmonology": {
		BodySystem:        "respiratory",
		FollowUpTimeframe: "within 48 hours",
		Questions: []string{
			"Are you short of breath at rest or only with activity?",
			"Are you coughing anything up?",
		},
	},
	"Rheumatology": {
		BodySystem:        "musculoskeletal",
		FollowUpTimeframe: "within 2 weeks",
		Questions: []string{
			"Are multiple joints affected?",
			"Is there morning stiffness lasting over an hour?",
		},
	},
	"Sports Medicine": {
		BodySystem:        "musculoskeletal",
		FollowUpTimeframe: "within 1 week",
		Questions: []string{
			"Did the symptom start during exercise or activity?",
			"Is there swelling or bruising?",
		},
	},
	"Urology": {
		BodySystem:        "genitourinary",
		FollowUpTimeframe: "within 48 hours",
		Questions: []string{
			"Is there blood in your urine?",
			"Do you have fever or back pain with it?",
		},
	},
	"Vascular Medicine": {
		BodySystem:        "cardiovascular",
		FollowUpTimeframe: "within 48 hours",
		Questions: []string{
			"Is one leg swollen, red, or warm compared to the other?",
			"Does the pain worsen with walking?",
		},
	},
	"Women's Health": {
		BodySystem:        "reproductive",
		FollowUpTimeframe: "within 1 week",
		Questions: []string{
			"When was your last menstrual period?",
			"Is there any chance you could be pregnant?",
		},
	},
}

var genericDefaults = specialtyDefaults{
	BodySystem:        "general",
	FollowUpTimeframe: "within 1 week",
	Questions: []string{
		"How long have the symptoms lasted?",
		"Have the symptoms gotten better or worse?",
	},
}

// DefaultsFor returns the provisional body system, follow-up timeframe and
// intake questions for a specialty.
func DefaultsFor(specialty string) (string, string, []string) {
	d, ok := defaultsBySpecialty[specialty]
	if !ok {
		d = genericDefaults
	}
	questions := make([]string, len(d.Questions))
	copy(questions, d.Questions)
	return d.BodySystem, d.FollowUpTimeframe, questions
}

// Phrases that force emergency urgency regardless of which tier produced
// the classification.
var emergencyPhrases = []string{
	"crushing chest pain",
	"chest pressure",
	"can't breathe",
	"cannot breathe",
	"difficulty breathing",
	"unconscious",
	"unresponsive",
	"not breathing",
	"severe bleeding",
	"coughing up blood",
	"vomiting blood",
	"one side weakness",
	"face drooping",
	"slurred speech",
	"worst headache",
	"suicidal",
	"overdose",
	"anaphyla",
	"seizure",
}

// IsEmergency reports whether the symptom description contains a phrase
// that requires immediate escalation.
func IsEmergency(symptoms string) bool {
	lower := strings.ToLower(symptoms)
	for _, phrase := range emergencyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
