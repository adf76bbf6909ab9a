package models

import (
	"encoding/json"
	"testing"
)

func intp(v int) *int { return &v }

func TestSensoryInputComplete(t *testing.T) {
	var in SensoryInput
	if !in.Empty() || in.Complete() {
		t.Fatal("zero input should be empty and incomplete")
	}

	for i, a := range Attributes {
		in.Set(a, intp(i+1))
		if in.Empty() {
			t.Fatalf("input empty after setting %s", a)
		}
		if last := i == len(Attributes)-1; in.Complete() != last {
			t.Fatalf("Complete() = %v after %d scores", in.Complete(), i+1)
		}
	}

	scores, ok := in.Scores()
	if !ok {
		t.Fatal("Scores() not ok on complete input")
	}
	want := SensoryScores{Aroma: 1, Color: 2, Taste: 3, AfterTaste: 4, Acceptability: 5}
	if scores != want {
		t.Errorf("scores = %+v, want %+v", scores, want)
	}

	in.Set(Taste, intp(8))
	if in.Complete() {
		t.Error("out of range score counted as complete")
	}
	in.Set(Taste, nil)
	if _, ok := in.Scores(); ok {
		t.Error("Scores() ok with a cleared score")
	}
}

func TestSensoryInputSetCopies(t *testing.T) {
	var in SensoryInput
	v := 3
	in.Set(Aroma, &v)
	v = 6
	if got := *in.Get(Aroma); got != 3 {
		t.Errorf("stored score changed with caller's variable: %d", got)
	}
}

func TestGradeValid(t *testing.T) {
	for _, g := range Grades {
		if !g.Valid() {
			t.Errorf("%s not valid", g)
		}
	}
	for _, g := range []Grade{"", "op", "BOP", "OP2"} {
		if g.Valid() {
			t.Errorf("%q valid", g)
		}
	}
}

func TestFeedbackWireShape(t *testing.T) {
	fb := Feedback{
		PredictionID:  4,
		IsAgreed:      true,
		Grade:         GradeOP1,
		Comment:       "fine",
		SensoryScores: SensoryScores{Aroma: 1, Color: 2, Taste: 3, AfterTaste: 4, Acceptability: 5},
	}
	data, err := json.Marshal(fb)
	if err != nil {
		t.Fatal(err)
	}
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"predictionId", "isAgreed", "grade", "comment", "aroma", "color", "taste", "afterTaste", "acceptability"} {
		if _, ok := flat[key]; !ok {
			t.Errorf("missing %q in %s", key, data)
		}
	}
}

func TestAttributeLabels(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range Attributes {
		l := a.Label()
		if l == "" || seen[l] {
			t.Errorf("bad label %q for %s", l, a)
		}
		seen[l] = true
	}
}
