package course

type AccessMode string

const (
	AccessOpen    AccessMode = "open"
	AccessRequest AccessMode = "request"
	AccessInvite  AccessMode = "invite"
)

type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamReady     ExamStatus = "ready"
	ExamPublished ExamStatus = "published"
)

// Branding is the course-level certificate theme. Opaque to the progression
// engine; handed to the certificate renderer as-is.
type Branding struct {
	Theme         string `json:"theme,omitempty"`
	AccentColor   string `json:"accent_color,omitempty"`
	SealText      string `json:"seal_text,omitempty"`
	SignatureText string `json:"signature_text,omitempty"`
}

type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`                 // >= 2
	CorrectIndex int      `json:"correct_index"`           // stripped on learner reads
	Weight       float64  `json:"weight"`                  // defaults to 1
}

// RetakePolicy limits attempts per (user, exam). Nil means unconstrained.
type RetakePolicy struct {
	MaxAttempts   *int `json:"max_attempts,omitempty"`
	CooldownHours *int `json:"cooldown_hours,omitempty"`
}

type Exam struct {
	ID        string     `json:"id"`
	SectionID string     `json:"section_id"`
	CourseID  string     `json:"course_id,omitempty"` // populated on reads
	Title     string     `json:"title"`
	Status    ExamStatus `json:"status"`

	TimeLimitSec int `json:"time_limit_sec"` // 0 = untimed

	// PassThreshold is a percentage (0-100]. 0 means unset; callers fall back
	// to the configured default.
	PassThreshold float64 `json:"pass_threshold"`

	Retake    RetakePolicy `json:"retake_policy"`
	Questions []Question   `json:"questions,omitempty"`

	// QuestionCount is populated on reads that omit the bank itself.
	QuestionCount int `json:"question_count,omitempty"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

type Module struct {
	ID          string `json:"id"`
	SectionID   string `json:"section_id"`
	Order       int    `json:"order"`
	Title       string `json:"title"`
	ContentType string `json:"content_type"` // video|audio|text
	ContentRef  string `json:"content_ref"`
}

// Section order is contiguous and unique within a course. Every section has
// exactly one gating exam, except optionally a terminal section.
type Section struct {
	ID       string   `json:"id"`
	CourseID string   `json:"course_id"`
	Order    int      `json:"order"`
	Title    string   `json:"title"`
	Modules  []Module `json:"modules"`
	Exam     *Exam    `json:"exam,omitempty"` // gating exam, without questions on structure reads
}

type Course struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	AccessMode AccessMode `json:"access_mode"`
	PriceCents int64      `json:"price_cents"`
	Branding   Branding   `json:"branding"`
	Sections   []Section  `json:"sections"` // ordered
	CreatedAt  int64      `json:"created_at,omitempty"`
}
