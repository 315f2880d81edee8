package alpha

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
)

var (
	// sessionHeaderRe matches: "Session Name";"2026-02-19 4:54 h";"1:02 hr"
	sessionHeaderRe = regexp.MustCompile(`^"(.+)";"(\d{4}-\d{2}-\d{2}\s+\d+:\d+)\s+h";"(.+)"$`)

	// exerciseHeaderRe matches: "1. Exercise Name · Equipment · 8 reps[· modifiers]"[;"warmup info"]
	exerciseHeaderRe = regexp.MustCompile(`^"(\d+)\.\s+(.+?)(?:\s+·\s+(\S.*?))?\s+·\s+(\d+)\s+reps(.*?)"(?:;"(.+)")?$`)

	// setDataRe matches: 1;115;8;1
	setDataRe = regexp.MustCompile(`^(\d+);(.+);(\d+);(.+)$`)

	// warmupRe matches one warmup entry: WU1 · 37,5 kg · 9 reps
	warmupRe = regexp.MustCompile(`WU\d+\s+·`)

	dayRe  = regexp.MustCompile(`(?i)\bday\s+(\d+)\b`)
	weekRe = regexp.MustCompile(`(?i)\bweek\s+(\d+)\b`)

	slugRe = regexp.MustCompile(`[^a-z0-9]+`)
)

const columnHeader = "#;KG;REPS;RIR"

// Session is one logged workout of an Alpha Progression export.
type Session struct {
	Name     string
	Date     time.Time
	Duration string

	// Program, Week and Day are read from a name such as
	// "Legs · Day 2 · Week 4 · Push-Pull-Legs". Week and Day are zero-based
	// and nil when the name does not carry them.
	Program string
	Week    *int
	Day     *int

	Exercises []Exercise
}

// Exercise is one exercise of a session with its working sets. Warmups
// are counted but not kept.
type Exercise struct {
	Number     int
	Name       string
	Equipment  string
	TargetReps int
	Warmups    int
	Sets       []models.Set
	RIR        []float64
}

// ID derives a stable exercise identifier from the name.
func (e Exercise) ID() string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(e.Name), "-"), "-")
}

type parser struct {
	sessions []Session
	session  *Session
	exercise *Exercise
}

func (p *parser) flushExercise() {
	if p.exercise != nil && p.session != nil {
		p.session.Exercises = append(p.session.Exercises, *p.exercise)
	}
	p.exercise = nil
}

func (p *parser) flushSession() {
	p.flushExercise()
	if p.session != nil {
		p.sessions = append(p.sessions, *p.session)
	}
	p.session = nil
}

func (p *parser) line(line string) error {
	switch {
	case line == "":
		// Blank line = session boundary
		p.flushSession()

	case line == columnHeader:

	case sessionHeaderRe.MatchString(line):
		m := sessionHeaderRe.FindStringSubmatch(line)
		p.flushSession()
		date, err := parseSessionDate(m[2])
		if err != nil {
			return err
		}
		p.session = newSession(m[1], date, m[3])

	case exerciseHeaderRe.MatchString(line):
		m := exerciseHeaderRe.FindStringSubmatch(line)
		if p.session == nil {
			return fmt.Errorf("exercise without session: %q", line)
		}
		p.flushExercise()
		num, _ := strconv.Atoi(m[1])
		target, _ := strconv.Atoi(m[4])
		p.exercise = &Exercise{
			Number:     num,
			Name:       strings.TrimSpace(m[2]),
			Equipment:  strings.TrimSpace(m[3]),
			TargetReps: target,
			Warmups:    len(warmupRe.FindAllString(m[6], -1)),
		}

	case setDataRe.MatchString(line):
		m := setDataRe.FindStringSubmatch(line)
		if p.exercise == nil {
			return fmt.Errorf("set data without exercise: %q", line)
		}
		reps, _ := strconv.ParseFloat(m[3], 64)
		p.exercise.Sets = append(p.exercise.Sets, workingSet(m[2], reps))
		p.exercise.RIR = append(p.exercise.RIR, parseEuropeanFloat(m[4]))

	default:
		// Notes and other metadata are ignored.
	}
	return nil
}

// Parse reads an Alpha Progression CSV export.
func Parse(r io.Reader) ([]Session, error) {
	scanner := bufio.NewScanner(r)
	p := &parser{}
	for scanner.Scan() {
		if err := p.line(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	p.flushSession()
	return p.sessions, nil
}

func newSession(name string, date time.Time, duration string) *Session {
	s := &Session{Name: name, Date: date, Duration: duration, Program: name}
	if parts := strings.Split(name, " · "); len(parts) > 1 {
		s.Program = strings.TrimSpace(parts[len(parts)-1])
	}
	if m := weekRe.FindStringSubmatch(name); m != nil {
		if n, _ := strconv.Atoi(m[1]); n > 0 {
			s.Week = models.IntPtr(n - 1)
		}
	}
	if m := dayRe.FindStringSubmatch(name); m != nil {
		if n, _ := strconv.Atoi(m[1]); n > 0 {
			s.Day = models.IntPtr(n - 1)
		}
	}
	return s
}

// parseSessionDate parses "2026-02-19 4:54" or "2026-02-19 16:54".
func parseSessionDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 3:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing session date %q: %w", s, models.ErrValidationFailure)
}

// workingSet builds a completed set. Bodyweight-plus weights ("+35") keep
// the added load; pure bodyweight ("+0") has no weight.
func workingSet(weight string, reps float64) models.Set {
	w := parseEuropeanFloat(strings.TrimPrefix(strings.TrimSpace(weight), "+"))
	completed := true
	set := models.Set{Reps: &reps, Completed: &completed}
	if w > 0 {
		set.Weight = &w
	}
	return set
}

// parseEuropeanFloat converts a decimal-comma string: "102,5" -> 102.5.
func parseEuropeanFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	return f
}
