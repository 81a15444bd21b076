package classify

import "testing"

func TestUnanswered_FlaggedPhrases(t *testing.T) {
	c := NewPhraseClassifier()

	cases := []struct {
		answer string
		want   bool
	}{
		{"I don't know the answer", true},
		{"I'm not sure about that", true},
		{"I don't have specific information on this topic.", true},
		{"Maaf, saya tidak tahu.", true},
		{"saya tidak yakin dengan jawaban ini", true},
		{"Saya tidak menemukan informasi terkait.", true},
		{"The invoice total is $42", false},
		{"", false},
		// Matching is case-sensitive by design.
		{"i don't know", false},
		{"SAYA TIDAK TAHU", false},
	}

	for _, tc := range cases {
		if got := c.Unanswered(tc.answer); got != tc.want {
			t.Errorf("Unanswered(%q) = %v, want %v", tc.answer, got, tc.want)
		}
	}
}

func TestUnanswered_CustomPhrases(t *testing.T) {
	c := NewPhraseClassifier("cannot answer")

	if !c.Unanswered("I cannot answer that") {
		t.Error("custom phrase not matched")
	}
	if c.Unanswered("I don't know") {
		t.Error("default phrases should not apply when custom phrases are given")
	}
}
