package models

import "fmt"

// Score bounds for every sensory attribute
const (
	MinScore = 1
	MaxScore = 7
)

// Attribute names one of the five sensory evaluation fields
type Attribute int

const (
	Aroma Attribute = iota
	Color
	Taste
	AfterTaste
	Acceptability
)

// Attributes in the order they are collected
var Attributes = []Attribute{Aroma, Color, Taste, AfterTaste, Acceptability}

func (a Attribute) String() string {
	switch a {
	case Aroma:
		return "aroma"
	case Color:
		return "color"
	case Taste:
		return "taste"
	case AfterTaste:
		return "afterTaste"
	case Acceptability:
		return "acceptability"
	}
	return fmt.Sprintf("attribute(%d)", int(a))
}

// Label is the human readable prompt for the attribute
func (a Attribute) Label() string {
	switch a {
	case Aroma:
		return "Aroma Intensity"
	case Color:
		return "Liquor Color"
	case Taste:
		return "Taste Quality"
	case AfterTaste:
		return "Aftertaste Persistence"
	case Acceptability:
		return "Overall Acceptability"
	}
	return a.String()
}

// ValidScore reports whether v is inside the sensory scale
func ValidScore(v int) bool {
	return v >= MinScore && v <= MaxScore
}

// SensoryScores is a complete set of sensory scores as sent on the wire
type SensoryScores struct {
	Aroma         int `json:"aroma"`
	Color         int `json:"color"`
	Taste         int `json:"taste"`
	AfterTaste    int `json:"afterTaste"`
	Acceptability int `json:"acceptability"`
}

// SensoryInput holds scores while they are being collected; nil means unset
type SensoryInput struct {
	Aroma         *int `json:"aroma"`
	Color         *int `json:"color"`
	Taste         *int `json:"taste"`
	AfterTaste    *int `json:"afterTaste"`
	Acceptability *int `json:"acceptability"`
}

func (s *SensoryInput) field(a Attribute) **int {
	switch a {
	case Aroma:
		return &s.Aroma
	case Color:
		return &s.Color
	case Taste:
		return &s.Taste
	case AfterTaste:
		return &s.AfterTaste
	case Acceptability:
		return &s.Acceptability
	}
	return nil
}

// Get returns the score for a, or nil when unset
func (s SensoryInput) Get(a Attribute) *int {
	p := s.field(a)
	if p == nil {
		return nil
	}
	return *p
}

// Set stores v for a; a nil v clears the score
func (s *SensoryInput) Set(a Attribute, v *int) {
	p := s.field(a)
	if p == nil {
		return
	}
	if v == nil {
		*p = nil
		return
	}
	n := *v
	*p = &n
}

// Complete reports whether every score is set and on the scale
func (s SensoryInput) Complete() bool {
	for _, a := range Attributes {
		v := s.Get(a)
		if v == nil || !ValidScore(*v) {
			return false
		}
	}
	return true
}

// Empty reports whether no score is set
func (s SensoryInput) Empty() bool {
	for _, a := range Attributes {
		if s.Get(a) != nil {
			return false
		}
	}
	return true
}

// Scores returns the wire form when the input is complete
func (s SensoryInput) Scores() (SensoryScores, bool) {
	if !s.Complete() {
		return SensoryScores{}, false
	}
	return SensoryScores{
		Aroma:         *s.Aroma,
		Color:         *s.Color,
		Taste:         *s.Taste,
		AfterTaste:    *s.AfterTaste,
		Acceptability: *s.Acceptability,
	}, true
}
