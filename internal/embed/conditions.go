package embed

// ConditionLabels is the class-index order of the condition head. The order
// is fixed by the trained model and must not be rearranged.
var ConditionLabels = []string{
	"Urinary Tract Infection",
	"Kidney Stones",
	"Benign Prostatic Hyperplasia",
	"Angina",
	"Atrial Fibrillation",
	"Congestive Heart Failure",
	"GERD",
	"Irritable Bowel Syndrome",
	"Inflammatory Bowel Disease",
	"Generalized Anxiety Disorder",
	"Major Depressive Disorder",
	"Panic Disorder",
	"Migraine",
	"Peripheral Neuropathy",
	"Transient Ischemic Attack",
	"Eczema",
	"Psoriasis",
	"Melanoma",
	"Lumbar Radiculopathy",
	"Meniscus Tear",
	"Rotator Cuff Injury",
	"Asthma",
	"COPD",
	"Pneumonia",
	"Rheumatoid Arthritis",
	"Gout",
	"Lupus",
	"Endometriosis",
	"Polycystic Ovary Syndrome",
	"Deep Vein Thrombosis",
	"Peripheral Artery Disease",
	"Viral Upper Respiratory Infection",
}
