package model

import "sort"

// Answer is what the user submitted for one question: option indices for a
// closed question, free text for an open one.
type Answer struct {
	Selected []int  `json:"selected,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Empty reports whether nothing has been selected or typed yet.
func (a Answer) Empty() bool {
	return len(a.Selected) == 0 && a.Text == ""
}

// Has reports whether option i is selected.
func (a Answer) Has(i int) bool {
	for _, s := range a.Selected {
		if s == i {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no memory with a.
func (a Answer) Clone() Answer {
	out := Answer{Text: a.Text}
	if a.Selected != nil {
		out.Selected = append([]int(nil), a.Selected...)
	}
	return out
}

// MatchesKey compares the selection with an answer key as sets.
// Only an exact match counts; subsets and supersets do not.
func (a Answer) MatchesKey(key []int) bool {
	got := append([]int(nil), a.Selected...)
	want := append([]int(nil), key...)
	sort.Ints(got)
	sort.Ints(want)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
