package classify

import (
	"context"
	"strings"
	"testing"
)

func TestHeuristicSubjects(t *testing.T) {
	pad := strings.Repeat("가", 40)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"vector is geometry", "두 벡터의 내적을 구하시오? " + pad, SubjectGeometry},
		{"parabola is geometry", "포물선의 초점을 구하시오? " + pad, SubjectGeometry},
		{"probability", "주사위를 던질 때 확률을 구하시오? " + pad, SubjectProbStats},
		{"combination", "서로 다른 조합의 수는? " + pad, SubjectProbStats},
		{"integral is calculus", "정적분의 값을 구하시오? " + pad, SubjectCalculus},
		{"derivative is calculus", "도함수를 구하시오? " + pad, SubjectCalculus},
		{"logarithm is math one", "로그의 값을 구하시오? " + pad, SubjectMathI},
		{"sequence is math one", "수열의 합을 구하시오? " + pad, SubjectMathI},
		{"no keyword defaults to math two", "함수의 값을 구하시오? " + pad, SubjectMathII},
		{"geometry outranks probability", "벡터와 확률이 모두 나오는 문제? " + pad, SubjectGeometry},
	}

	h := Heuristic{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.classifyOne(Item{Key: "k", Text: tt.text})
			if got.SubjectCode != tt.want {
				t.Errorf("subject = %q, want %q", got.SubjectCode, tt.want)
			}
		})
	}
}

func TestHeuristicPoints(t *testing.T) {
	long := strings.Repeat("문", 100)

	tests := []struct {
		name string
		text string
		want int
	}{
		{"killer marker wins", "킬러 문항?", 4},
		{"hardest marker wins", "최고난도 " + long, 4},
		{"short statement", "짧은 문제?", 2},
		{"standard length", long, 3},
	}

	h := Heuristic{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.classifyOne(Item{Key: "k", Text: tt.text})
			if got.Points != tt.want {
				t.Errorf("points = %d, want %d", got.Points, tt.want)
			}
		})
	}
}

func TestHeuristicConfidence(t *testing.T) {
	h := Heuristic{}
	if got := h.classifyOne(Item{Text: "다음 중 옳은 것은?"}); got.Confidence != structureConfidence {
		t.Errorf("confidence = %d, want %d", got.Confidence, structureConfidence)
	}
	if got := h.classifyOne(Item{Text: "값을 구하시오?"}); got.Confidence != baseConfidence {
		t.Errorf("confidence = %d, want %d", got.Confidence, baseConfidence)
	}
}

func TestHeuristicValidity(t *testing.T) {
	pad := strings.Repeat("가", 40)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"long with question mark", pad + "?", true},
		{"too short", "짧음?", false},
		{"no question mark", pad, false},
	}

	h := Heuristic{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.classifyOne(Item{Text: tt.text}); got.Valid != tt.want {
				t.Errorf("valid = %v, want %v", got.Valid, tt.want)
			}
		})
	}
}

func TestHeuristicBatch(t *testing.T) {
	items := []Item{
		{Key: "a", Text: "벡터 문제?"},
		{Key: "b", Text: "적분 문제?"},
	}
	results, err := Heuristic{}.Classify(context.Background(), items)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Key != "a" || results[1].Key != "b" {
		t.Errorf("keys not preserved: %+v", results)
	}
	for _, r := range results {
		if r.Source != SourceHeuristic {
			t.Errorf("source = %q, want %q", r.Source, SourceHeuristic)
		}
	}
}
