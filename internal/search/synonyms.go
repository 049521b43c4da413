package search

// Health-domain synonym table used by deep-mode query broadening.
// Kept deliberately small: each entry widens recall for terms users
// phrase differently across logs and conversations.
var synonymTable = map[string][]string{
	"sleep":     {"rest", "insomnia", "nap"},
	"insomnia":  {"sleep", "sleepless"},
	"weight":    {"pounds", "kg", "kilograms", "lbs"},
	"diet":      {"nutrition", "eating", "meals"},
	"nutrition": {"diet", "food", "meals"},
	"workout":   {"exercise", "training", "gym"},
	"exercise":  {"workout", "training", "activity"},
	"run":       {"running", "jog", "cardio"},
	"steps":     {"walking", "walked"},
	"stress":    {"anxiety", "anxious", "overwhelmed"},
	"anxiety":   {"stress", "anxious"},
	"fatigue":   {"tired", "exhausted", "energy"},
	"tired":     {"fatigue", "exhausted"},
	"pain":      {"ache", "sore", "soreness"},
	"doctor":    {"physician", "appointment", "checkup"},
	"blood":     {"bloodwork", "labs"},
	"heart":     {"cardiac", "cardio", "pulse"},
	"sugar":     {"glucose", "carbs"},
	"protein":   {"macros"},
	"medication": {"medicine", "meds", "prescription"},
	"mood":      {"feeling", "emotions"},
	"calories":  {"kcal", "calorie"},
}

// Synonyms returns expansion terms for a token, or nil.
func Synonyms(token string) []string {
	return synonymTable[token]
}
