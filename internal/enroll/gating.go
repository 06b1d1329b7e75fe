package enroll

import (
	"math"

	"github.com/parishhub/digitalschool/internal/course"
)

// SectionGate is the derived unlock state of one section for one learner.
type SectionGate struct {
	SectionID string `json:"section_id"`
	Order     int    `json:"order"`
	Title     string `json:"title"`

	Unlocked   bool   `json:"unlocked"`
	ExamID     string `json:"exam_id,omitempty"`
	ExamPassed bool   `json:"exam_passed"`

	UnlockedModules int `json:"unlocked_modules"`
	LockedModules   int `json:"locked_modules"`
}

// Gates derives the unlock state of every section from the learner's passed
// exam set. The first section is always unlocked; section i is unlocked iff
// section i-1's gating exam is passed. A section whose exam is missing or
// unpublished blocks everything after it until the exam is published and
// passed. Derived fresh on every read, never cached.
func Gates(sections []course.Section, passed map[string]bool) []SectionGate {
	out := make([]SectionGate, 0, len(sections))
	unlocked := true
	for _, sec := range sections {
		g := SectionGate{
			SectionID: sec.ID,
			Order:     sec.Order,
			Title:     sec.Title,
			Unlocked:  unlocked,
		}
		if sec.Exam != nil {
			g.ExamID = sec.Exam.ID
			g.ExamPassed = passed[sec.Exam.ID]
		}
		if g.Unlocked {
			g.UnlockedModules = len(sec.Modules)
		} else {
			g.LockedModules = len(sec.Modules)
		}
		out = append(out, g)
		unlocked = unlocked && g.ExamPassed
	}
	return out
}

// Progress computes the enrollment's progress percentage and whether the
// course is complete. A section counts as completed when its gating exam is
// passed; a terminal section without an exam counts once it is unlocked.
func Progress(sections []course.Section, passed map[string]bool) (percent int, complete bool) {
	if len(sections) == 0 {
		return 0, false
	}
	gates := Gates(sections, passed)
	done := 0
	complete = true
	for _, g := range gates {
		// "Completed" means unlocked and, when gated, passed. A passing
		// attempt on a still-locked section does not count until the
		// sections before it are cleared.
		if g.Unlocked && (g.ExamID == "" || g.ExamPassed) {
			done++
		} else {
			complete = false
		}
	}
	percent = int(math.Round(100 * float64(done) / float64(len(sections))))
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent, complete
}
