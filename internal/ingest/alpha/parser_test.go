package alpha

import (
	"strings"
	"testing"
	"time"
)

const sampleCSV = `
"Legs · Day 2 · Week 4 · Push-Pull-Legs";"2026-02-19 4:54 h";"1:02 hr"
"1. Hack Squats · Machine · 8 reps";"WU1 · 37,5 kg · 9 reps<br>WU2 · 72,5 kg · 7 reps"
#;KG;REPS;RIR
1;115;8;1
2;115;10;1
3;115;10;1
"2. Sumo Squats · Smith machine · 10 reps";"WU1 · 35 kg · 8 reps"
#;KG;REPS;RIR
1;70;8;1
2;70;12;1
"3. Hyperextensions on Roman Chair · Bodyweight · 10 reps";"WU1 · +0 kg · 8 reps"
#;KG;REPS;RIR
1;+35;10;0
2;+35;9;1
3;+35;10;0
"4. Standing Calf Raises · Machine · 12 reps";"WU1 · 47,5 kg · 8 reps"
#;KG;REPS;RIR
1;157,5;11;1
2;157,5;11;0,5
"5. Hanging Leg Raises · Bodyweight · 12 reps · 2 dropsets"
#;KG;REPS;RIR
1;+0;12;1
2;+0;12;1

"Push · Day 1 · Week 4 · Push-Pull-Legs";"2026-02-17 5:04 h";"1:12 hr"
"1. Bench Press · Barbell · 6 reps";"WU1 · 22,5 kg · 10 reps<br>WU2 · 47,5 kg · 8 reps<br>WU3 · 77,5 kg · 6 reps"
#;KG;REPS;RIR
1;102,5;6;0
2;102,5;6;0
3;100;6;0
`

// TestParseCompleteSessions verifies parsing a multi-session CSV with exercises and sets.
func TestParseCompleteSessions(t *testing.T) {
	sessions, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	s1 := sessions[0]
	if s1.Name != "Legs · Day 2 · Week 4 · Push-Pull-Legs" {
		t.Errorf("s1.Name = %q", s1.Name)
	}
	if s1.Duration != "1:02 hr" {
		t.Errorf("s1.Duration = %q", s1.Duration)
	}
	if want := time.Date(2026, 2, 19, 4, 54, 0, 0, time.UTC); !s1.Date.Equal(want) {
		t.Errorf("s1.Date = %v, want %v", s1.Date, want)
	}
	if len(s1.Exercises) != 5 {
		t.Fatalf("s1 exercises = %d, want 5", len(s1.Exercises))
	}

	tests := []struct {
		name, equipment string
		target, warmups int
		sets            int
	}{
		{"Hack Squats", "Machine", 8, 2, 3},
		{"Sumo Squats", "Smith machine", 10, 1, 2},
		{"Hyperextensions on Roman Chair", "Bodyweight", 10, 1, 3},
		{"Standing Calf Raises", "Machine", 12, 1, 2},
		{"Hanging Leg Raises", "Bodyweight", 12, 0, 2},
	}
	for i, tt := range tests {
		ex := s1.Exercises[i]
		if ex.Name != tt.name || ex.Equipment != tt.equipment {
			t.Errorf("exercise %d = %q/%q, want %q/%q", i+1, ex.Name, ex.Equipment, tt.name, tt.equipment)
		}
		if ex.TargetReps != tt.target || ex.Warmups != tt.warmups || len(ex.Sets) != tt.sets {
			t.Errorf("%s: target=%d warmups=%d sets=%d, want %d/%d/%d",
				tt.name, ex.TargetReps, ex.Warmups, len(ex.Sets), tt.target, tt.warmups, tt.sets)
		}
	}

	if s2 := sessions[1]; s2.Name != "Push · Day 1 · Week 4 · Push-Pull-Legs" || len(s2.Exercises) != 1 {
		t.Errorf("s2 = %q with %d exercises", s2.Name, len(s2.Exercises))
	}
}

// TestSessionCoordinates verifies program, week and day are read from the
// session name and made zero-based.
func TestSessionCoordinates(t *testing.T) {
	s := newSession("Legs · Day 2 · Week 4 · Push-Pull-Legs", time.Time{}, "")
	if s.Program != "Push-Pull-Legs" {
		t.Errorf("program = %q", s.Program)
	}
	if s.Week == nil || *s.Week != 3 || s.Day == nil || *s.Day != 1 {
		t.Errorf("week/day = %v/%v, want 3/1", s.Week, s.Day)
	}

	plain := newSession("Quick session", time.Time{}, "")
	if plain.Program != "Quick session" || plain.Week != nil || plain.Day != nil {
		t.Errorf("plain session = %+v", plain)
	}
}

// TestWorkingSetWeights verifies decimal commas and bodyweight notation.
func TestWorkingSetWeights(t *testing.T) {
	tests := []struct {
		in        string
		want      float64
		hasWeight bool
	}{
		{"102,5", 102.5, true},
		{"+35", 35, true},
		{"+0", 0, false},
		{"0", 0, false},
	}
	for _, tt := range tests {
		s := workingSet(tt.in, 8)
		if (s.Weight != nil) != tt.hasWeight || s.WeightOrZero() != tt.want {
			t.Errorf("workingSet(%q) weight = %v, want %v (present %v)", tt.in, s.Weight, tt.want, tt.hasWeight)
		}
		if !s.IsCompleted() || s.RepsOrZero() != 8 {
			t.Errorf("workingSet(%q) = %+v", tt.in, s)
		}
	}
}

// TestFractionalRIR verifies that fractional RIR values are parsed correctly.
func TestFractionalRIR(t *testing.T) {
	sessions, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	rir := sessions[0].Exercises[3].RIR
	if len(rir) != 2 || rir[1] != 0.5 {
		t.Errorf("RIR = %v, want [1 0.5]", rir)
	}
}

// TestExerciseID verifies identifiers are lowercase slugs of the name.
func TestExerciseID(t *testing.T) {
	tests := map[string]string{
		"Hack Squats":                    "hack-squats",
		"Hyperextensions on Roman Chair": "hyperextensions-on-roman-chair",
		"Pull-Ups (Weighted)":            "pull-ups-weighted",
	}
	for name, want := range tests {
		if got := (Exercise{Name: name}).ID(); got != want {
			t.Errorf("ID(%q) = %q, want %q", name, got, want)
		}
	}
}

// TestParseErrors verifies orphan lines are rejected.
func TestParseErrors(t *testing.T) {
	inputs := []string{
		`"1. Bench Press · Barbell · 6 reps"`,
		"1;100;6;0",
	}
	for _, in := range inputs {
		if _, err := Parse(strings.NewReader(in)); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}

// TestEmptyInput verifies that empty input returns no sessions without error.
func TestEmptyInput(t *testing.T) {
	sessions, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(sessions))
	}
}
