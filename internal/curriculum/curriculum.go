// Package curriculum holds the math unit directory problems are filed under.
// The taxonomy is read-only at runtime; units are seeded into the store once
// and loaded into a Directory for lookups.
package curriculum

import "strings"

// Unit is one node of the curriculum tree. Leaf units (no children) are the
// only valid targets for problem-unit mappings.
type Unit struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	SubjectCode string   `json:"subject_code"`
	ParentCode  string   `json:"parent_code,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Directory indexes units by code and parent for match lookups.
type Directory struct {
	ordered  []Unit
	byCode   map[string]Unit
	children map[string][]string
}

// NewDirectory builds a directory from a unit list. Order is preserved and
// used to break match ties deterministically.
func NewDirectory(units []Unit) *Directory {
	d := &Directory{
		ordered:  make([]Unit, 0, len(units)),
		byCode:   make(map[string]Unit, len(units)),
		children: make(map[string][]string),
	}
	for _, u := range units {
		if u.Code == "" {
			continue
		}
		if _, exists := d.byCode[u.Code]; exists {
			continue
		}
		d.ordered = append(d.ordered, u)
		d.byCode[u.Code] = u
		if u.ParentCode != "" {
			d.children[u.ParentCode] = append(d.children[u.ParentCode], u.Code)
		}
	}
	return d
}

// ByCode returns the unit with the given code.
func (d *Directory) ByCode(code string) (Unit, bool) {
	u, ok := d.byCode[code]
	return u, ok
}

// IsLeaf reports whether the code names a unit with no children.
func (d *Directory) IsLeaf(code string) bool {
	if _, ok := d.byCode[code]; !ok {
		return false
	}
	return len(d.children[code]) == 0
}

// Units returns all units in insertion order.
func (d *Directory) Units() []Unit {
	out := make([]Unit, len(d.ordered))
	copy(out, d.ordered)
	return out
}

// Match finds the leaf unit under the given subject whose keywords best
// overlap the classifier's keyword hits. Ties go to the earlier unit. A
// subject with no keyword hits matches nothing.
func (d *Directory) Match(subjectCode string, keywords []string) (Unit, bool) {
	if subjectCode == "" || len(keywords) == 0 {
		return Unit{}, false
	}

	var best Unit
	bestScore := 0
	for _, u := range d.ordered {
		if u.SubjectCode != subjectCode || !d.IsLeaf(u.Code) {
			continue
		}
		score := 0
		for _, kw := range u.Keywords {
			for _, hit := range keywords {
				if strings.Contains(hit, kw) || strings.Contains(kw, hit) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			best = u
			bestScore = score
		}
	}
	return best, bestScore > 0
}

// DefaultLeaf returns the first leaf unit under a subject, used when the
// classifier gave a subject but no usable keywords.
func (d *Directory) DefaultLeaf(subjectCode string) (Unit, bool) {
	for _, u := range d.ordered {
		if u.SubjectCode == subjectCode && d.IsLeaf(u.Code) {
			return u, true
		}
	}
	return Unit{}, false
}

// DefaultUnits is the seed taxonomy for the Korean high-school curriculum.
// Codes are stable identifiers; names are display strings.
func DefaultUnits() []Unit {
	return []Unit{
		{Code: "MATH_I", Name: "수학I", SubjectCode: "MATH_I"},
		{Code: "MATH_I-EXP_LOG", Name: "지수함수와 로그함수", SubjectCode: "MATH_I", ParentCode: "MATH_I", Keywords: []string{"지수", "로그"}},
		{Code: "MATH_I-TRIG", Name: "삼각함수", SubjectCode: "MATH_I", ParentCode: "MATH_I", Keywords: []string{"삼각함수", "사인", "코사인"}},
		{Code: "MATH_I-SEQ", Name: "수열", SubjectCode: "MATH_I", ParentCode: "MATH_I", Keywords: []string{"수열", "등차", "등비"}},

		{Code: "MATH_II", Name: "수학II", SubjectCode: "MATH_II"},
		{Code: "MATH_II-LIMIT", Name: "함수의 극한과 연속", SubjectCode: "MATH_II", ParentCode: "MATH_II", Keywords: []string{"극한", "연속"}},
		{Code: "MATH_II-DIFF", Name: "다항함수의 미분법", SubjectCode: "MATH_II", ParentCode: "MATH_II", Keywords: []string{"미분", "접선"}},
		{Code: "MATH_II-INT", Name: "다항함수의 적분법", SubjectCode: "MATH_II", ParentCode: "MATH_II", Keywords: []string{"적분", "넓이"}},

		{Code: "PROB_STATS", Name: "확률과 통계", SubjectCode: "PROB_STATS"},
		{Code: "PROB_STATS-COMB", Name: "경우의 수", SubjectCode: "PROB_STATS", ParentCode: "PROB_STATS", Keywords: []string{"조합", "순열", "이항정리"}},
		{Code: "PROB_STATS-PROB", Name: "확률", SubjectCode: "PROB_STATS", ParentCode: "PROB_STATS", Keywords: []string{"확률", "조건부"}},
		{Code: "PROB_STATS-STAT", Name: "통계", SubjectCode: "PROB_STATS", ParentCode: "PROB_STATS", Keywords: []string{"통계", "정규분포", "표본"}},

		{Code: "CALCULUS", Name: "미적분", SubjectCode: "CALCULUS"},
		{Code: "CALCULUS-SERIES", Name: "수열의 극한", SubjectCode: "CALCULUS", ParentCode: "CALCULUS", Keywords: []string{"급수", "수렴"}},
		{Code: "CALCULUS-DIFF", Name: "미분법", SubjectCode: "CALCULUS", ParentCode: "CALCULUS", Keywords: []string{"미분", "도함수"}},
		{Code: "CALCULUS-INT", Name: "적분법", SubjectCode: "CALCULUS", ParentCode: "CALCULUS", Keywords: []string{"적분", "치환"}},

		{Code: "GEOMETRY", Name: "기하", SubjectCode: "GEOMETRY"},
		{Code: "GEOMETRY-CONIC", Name: "이차곡선", SubjectCode: "GEOMETRY", ParentCode: "GEOMETRY", Keywords: []string{"포물선", "타원", "쌍곡선"}},
		{Code: "GEOMETRY-VECTOR", Name: "평면벡터", SubjectCode: "GEOMETRY", ParentCode: "GEOMETRY", Keywords: []string{"벡터", "내적"}},
		{Code: "GEOMETRY-SPACE", Name: "공간도형과 공간좌표", SubjectCode: "GEOMETRY", ParentCode: "GEOMETRY", Keywords: []string{"공간좌표", "공간도형"}},
	}
}
