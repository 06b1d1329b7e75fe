package enroll_test

import (
	"testing"

	"github.com/parishhub/digitalschool/internal/course"
	"github.com/parishhub/digitalschool/internal/enroll"
)

func threeSections() []course.Section {
	return []course.Section{
		{ID: "s1", Order: 0, Title: "Foundations",
			Modules: []course.Module{{ID: "m1"}, {ID: "m2"}},
			Exam:    &course.Exam{ID: "e1", Status: course.ExamPublished}},
		{ID: "s2", Order: 1, Title: "Doctrine",
			Modules: []course.Module{{ID: "m3"}},
			Exam:    &course.Exam{ID: "e2", Status: course.ExamPublished}},
		{ID: "s3", Order: 2, Title: "Practice",
			Modules: []course.Module{{ID: "m4"}}},
	}
}

func TestGatesFirstSectionAlwaysUnlocked(t *testing.T) {
	gates := enroll.Gates(threeSections(), nil)
	if len(gates) != 3 {
		t.Fatalf("want 3 gates, got %d", len(gates))
	}
	if !gates[0].Unlocked || gates[1].Unlocked || gates[2].Unlocked {
		t.Fatalf("only the first section starts unlocked: %+v", gates)
	}
	if gates[0].UnlockedModules != 2 || gates[1].LockedModules != 1 {
		t.Fatalf("module counts wrong: %+v", gates)
	}
}

func TestGatesUnlockChain(t *testing.T) {
	gates := enroll.Gates(threeSections(), map[string]bool{"e1": true})
	if !gates[1].Unlocked {
		t.Fatalf("passing e1 must unlock section 2")
	}
	if gates[2].Unlocked {
		t.Fatalf("section 3 stays locked until e2 is passed")
	}

	gates = enroll.Gates(threeSections(), map[string]bool{"e1": true, "e2": true})
	if !gates[2].Unlocked {
		t.Fatalf("passing e1 and e2 must unlock the terminal section")
	}
}

// A pass recorded out of order does not leapfrog the chain: e2 passed without
// e1 leaves sections 2 and 3 locked.
func TestGatesOutOfOrderPassDoesNotLeapfrog(t *testing.T) {
	gates := enroll.Gates(threeSections(), map[string]bool{"e2": true})
	if gates[1].Unlocked || gates[2].Unlocked {
		t.Fatalf("e2 alone must not unlock anything: %+v", gates)
	}
	if !gates[1].ExamPassed {
		t.Fatalf("the pass itself is still recorded on the gate")
	}
}

func TestProgress(t *testing.T) {
	secs := threeSections()

	pct, complete := enroll.Progress(secs, nil)
	if pct != 0 || complete {
		t.Fatalf("no passes: want 0,false got %d,%v", pct, complete)
	}

	pct, complete = enroll.Progress(secs, map[string]bool{"e1": true})
	if pct != 33 || complete {
		t.Fatalf("one of three: want 33,false got %d,%v", pct, complete)
	}

	// The terminal section has no exam, so passing both gates completes it.
	pct, complete = enroll.Progress(secs, map[string]bool{"e1": true, "e2": true})
	if pct != 100 || !complete {
		t.Fatalf("all passed: want 100,true got %d,%v", pct, complete)
	}
}

func TestProgressIgnoresLockedPasses(t *testing.T) {
	pct, complete := enroll.Progress(threeSections(), map[string]bool{"e2": true})
	if pct != 0 || complete {
		t.Fatalf("a pass behind a locked gate counts for nothing yet: got %d,%v", pct, complete)
	}
}

func TestProgressEmptyCourse(t *testing.T) {
	pct, complete := enroll.Progress(nil, nil)
	if pct != 0 || complete {
		t.Fatalf("empty course is never complete: got %d,%v", pct, complete)
	}
}

func TestProgressTwoSectionWalkthrough(t *testing.T) {
	secs := []course.Section{
		{ID: "s1", Exam: &course.Exam{ID: "e1", Status: course.ExamPublished}},
		{ID: "s2", Exam: &course.Exam{ID: "e2", Status: course.ExamPublished}},
	}
	pct, complete := enroll.Progress(secs, map[string]bool{"e1": true})
	if pct != 50 || complete {
		t.Fatalf("halfway: want 50,false got %d,%v", pct, complete)
	}
	pct, complete = enroll.Progress(secs, map[string]bool{"e1": true, "e2": true})
	if pct != 100 || !complete {
		t.Fatalf("done: want 100,true got %d,%v", pct, complete)
	}
}
