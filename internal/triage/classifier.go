package triage

import "strings"

// Classification is the clinical intent label attached to a turn.
type Classification string

const (
	ClassSymptom     Classification = "SYMPTOM"
	ClassMedication  Classification = "MEDICATION"
	ClassTestResult  Classification = "TEST_RESULT"
	ClassVitalSigns  Classification = "VITAL_SIGNS"
	ClassAppointment Classification = "APPOINTMENT"
	ClassEmergency   Classification = "EMERGENCY"
	ClassGeneral     Classification = "GENERAL"

	// ClassPHIDetected labels turns refused by the privacy gate. Classify
	// never returns it.
	ClassPHIDetected Classification = "PHI_DETECTED"
)

func (c Classification) String() string { return string(c) }

type keywordRule struct {
	class    Classification
	keywords []string
}

// rules are checked in order; the first rule with a substring hit wins.
var rules = []keywordRule{
	{ClassSymptom, []string{
		"symptom", "pain", "ache", "hurt", "fever", "cough", "sore", "nausea", "vomit",
		"dizzy", "rash", "itch", "swelling", "fatigue", "tired", "cold", "flu", "diarrhea",
		"throat", "congestion", "sneez",
	}},
	{ClassMedication, []string{
		"medication", "medicine", "pill", "tablet", "capsule", "dose", "dosage", "drug",
		"prescription", "refill", "side effect", "ibuprofen", "acetaminophen", "tylenol",
		"antibiotic", "amoxicillin", "insulin",
	}},
	{ClassTestResult, []string{
		"test result", "lab result", "labs", "blood test", "blood work", "bloodwork",
		"x-ray", "xray", "mri", "ct scan", "biopsy", "cholesterol", "a1c", "glucose level",
		"results",
	}},
	{ClassVitalSigns, []string{
		"blood pressure", "heart rate", "pulse", "temperature", "bpm", "oxygen",
		"spo2", "respiratory rate", "weight", "bmi", "vital",
	}},
	{ClassAppointment, []string{
		"appointment", "schedule", "reschedule", "book a", "booking", "check-up",
		"checkup", "follow-up", "follow up", "visit", "cancel my",
	}},
	{ClassEmergency, []string{
		"911", "ambulance", "emergency room", "poison", "allergic reaction", "anaphyla",
	}},
}

// Classify labels redacted text by first-match keyword lookup. It is pure
// and total; GENERAL is returned when nothing matches.
func Classify(redactedText string) Classification {
	text := strings.ToLower(redactedText)
	if strings.TrimSpace(text) == "" {
		return ClassGeneral
	}
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.class
			}
		}
	}
	return ClassGeneral
}
