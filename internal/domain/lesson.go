package domain

import (
	"math"
	"strings"
)

// Level is a CEFR-style lesson level.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

var levelOrder = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

var levelNames = map[Level]string{
	LevelA1: "Beginner",
	LevelA2: "Elementary",
	LevelB1: "Intermediate",
	LevelB2: "Upper Intermediate",
	LevelC1: "Advanced",
	LevelC2: "Proficient",
}

// ParseLevel normalises a level code; ok is false for unknown codes.
func ParseLevel(raw string) (Level, bool) {
	l := Level(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := levelNames[l]
	return l, ok
}

// DisplayText renders e.g. "Intermediate (B1)".
func (l Level) DisplayText() string {
	name, ok := levelNames[l]
	if !ok {
		return "Unspecified"
	}
	return name + " (" + string(l) + ")"
}

// Stars renders the difficulty as 1..6 filled stars.
func (l Level) Stars() string {
	for i, lv := range levelOrder {
		if lv == l {
			return strings.Repeat("★", i+1) + strings.Repeat("☆", len(levelOrder)-i-1)
		}
	}
	return strings.Repeat("☆", len(levelOrder))
}

// CompletionRate is completions/views as a percentage, 0 without views.
func (l Lesson) CompletionRate() float64 {
	if l.Views == 0 {
		return 0
	}
	return math.Round(float64(l.Completions)/float64(l.Views)*10000) / 100
}

// LessonView is the external projection with derived fields.
type LessonView struct {
	Lesson
	LevelText      string  `json:"level_display"`
	Difficulty     string  `json:"difficulty_stars"`
	CompletionRate float64 `json:"completion_rate"`
}

func (l Lesson) View() LessonView {
	return LessonView{
		Lesson:         l,
		LevelText:      l.Level.DisplayText(),
		Difficulty:     l.Level.Stars(),
		CompletionRate: l.CompletionRate(),
	}
}
