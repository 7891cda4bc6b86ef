package models

import "time"

// FormStatus is the lifecycle state of a form.
type FormStatus string

const (
	FormDraft     FormStatus = "DRAFT"
	FormPublished FormStatus = "PUBLISHED"
	FormArchived  FormStatus = "ARCHIVED"
)

// Form is a named, ordered collection of questions owned by one user.
type Form struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"userId"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	Status        FormStatus  `json:"status"`
	ShareableURL  string      `json:"shareableUrl"`
	PasswordHash  string      `json:"-"` // bcrypt; never serialized
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	ResponseLimit int         `json:"responseLimit,omitempty"` // 0 = unlimited
	AllowMultiple bool        `json:"allowMultiple"`
	CollectEmail  bool        `json:"collectEmail"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	PublishedAt   *time.Time  `json:"publishedAt,omitempty"`
	Questions     []*Question `json:"questions,omitempty"`
}

// PasswordProtected reports whether submissions must carry the form password.
func (f *Form) PasswordProtected() bool { return f != nil && f.PasswordHash != "" }

// Expired reports whether the form stopped accepting responses before now.
func (f *Form) Expired(now time.Time) bool {
	return f != nil && f.ExpiresAt != nil && f.ExpiresAt.Before(now)
}

// Question is one prompt within a form.
type Question struct {
	ID          string           `json:"id"`
	FormID      string           `json:"formId"`
	Type        QuestionType     `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Required    bool             `json:"required"`
	Order       int              `json:"order"`
	Options     *QuestionOptions `json:"options,omitempty"`
}

// Response is one respondent's submission attempt.
type Response struct {
	ID          string     `json:"id"`
	FormID      string     `json:"formId"`
	Email       string     `json:"email,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	IPAddress   string     `json:"ipAddress,omitempty"`
	UserAgent   string     `json:"userAgent,omitempty"`
	Answers     []*Answer  `json:"answers"`
}

// Completed reports whether the response was submitted.
func (r *Response) Completed() bool { return r != nil && r.CompletedAt != nil }

// Answer is one respondent's value for one question.
type Answer struct {
	ID         string      `json:"id"`
	ResponseID string      `json:"responseId"`
	QuestionID string      `json:"questionId"`
	Value      AnswerValue `json:"value"`
	FileURL    string      `json:"fileUrl,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	Question   *Question   `json:"question,omitempty"`
}
