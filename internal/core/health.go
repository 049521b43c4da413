package core

import "time"

// DateKey is the natural-key format for daily log entries. Keys sort
// lexicographically in chronological order, which the record store
// relies on for range queries.
const DateKey = "2006-01-02"

// DailyLogEntry is the canonical per-day shape produced by normalizing
// heterogeneous raw health inputs. One entry per user per calendar day.
type DailyLogEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Date        string    `json:"date"` // DateKey format
	SleepHours  float64   `json:"sleepHours,omitempty"`
	Steps       int       `json:"steps,omitempty"`
	Calories    int       `json:"calories,omitempty"`
	WeightKg    float64   `json:"weightKg,omitempty"`
	Mood        string    `json:"mood,omitempty"`
	EnergyLevel int       `json:"energyLevel,omitempty"` // 1..10
	Workouts    []string  `json:"workouts,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Pattern is a recurring behavioral or health observation derived from
// the user's logs and conversations.
type Pattern struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"` // e.g. "sleep", "nutrition", "activity"
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	ObservedAt  time.Time `json:"observedAt"`
}

// Persona is the communication style used to steer downstream response
// generation.
type Persona struct {
	Tone          string `json:"tone"`
	DetailLevel   string `json:"detailLevel"`
	Encouragement string `json:"encouragement"`
}

// HealthProfile is the single evolving profile record per user.
type HealthProfile struct {
	UserID    string    `json:"userId"`
	Patterns  []Pattern `json:"patterns"`
	Persona   Persona   `json:"persona"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
