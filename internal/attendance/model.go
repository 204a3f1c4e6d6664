package attendance

import (
	"encoding/json"
	"strings"
	"time"
)

// Fields holds the editable attendee columns of a report row.
// Optional text columns are empty when absent.
type Fields struct {
	Attended         string `json:"attended"`
	UserName         string `json:"userName"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	RegistrationTime string `json:"registrationTime"`
	ApprovalStatus   string `json:"approvalStatus"`
	JoinTime         string `json:"joinTime"`
	LeaveTime        string `json:"leaveTime"`
	SessionDuration  *int   `json:"sessionDuration"`
	IsGuest          string `json:"isGuest"`
	Country          string `json:"country"`
	PhoneNumber      string `json:"phoneNumber"`
}

// Record is a normalized attendee row. Rows produced by the ingest pipeline
// carry no ID or CreatedAt until a Repository stores them.
type Record struct {
	ID string `json:"id"`
	Fields
	IsDuplicate    bool      `json:"isDuplicate"`
	DuplicateGroup string    `json:"duplicateGroup"`
	HasErrors      bool      `json:"hasErrors"`
	ErrorMessages  []string  `json:"errorMessages"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MarshalJSON renders an empty DuplicateGroup as null and a nil
// ErrorMessages as an empty list.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	out := struct {
		plain
		DuplicateGroup *string `json:"duplicateGroup"`
	}{plain: plain(r)}
	if r.DuplicateGroup != "" {
		out.DuplicateGroup = &r.DuplicateGroup
	}
	if out.ErrorMessages == nil {
		out.ErrorMessages = []string{}
	}
	return json.Marshal(out)
}

// Present reports whether the attended marker means the person joined.
func (r Record) Present() bool {
	switch strings.TrimSpace(r.Attended) {
	case "نعم", "Yes", "yes":
		return true
	}
	return false
}

// Clone returns a copy that shares no mutable state with r.
func (r Record) Clone() Record {
	out := r
	if r.SessionDuration != nil {
		d := *r.SessionDuration
		out.SessionDuration = &d
	}
	if r.ErrorMessages != nil {
		out.ErrorMessages = append([]string(nil), r.ErrorMessages...)
	}
	return out
}

// SetErrors attaches validation messages and keeps HasErrors in step.
func (r *Record) SetErrors(msgs []string) {
	if len(msgs) == 0 {
		r.HasErrors = false
		r.ErrorMessages = nil
		return
	}
	r.HasErrors = true
	r.ErrorMessages = append([]string(nil), msgs...)
}

// Statistics counts records by status. An errored duplicate counts in both
// Duplicate and Error, so the three may sum to more than Total.
type Statistics struct {
	Total     int `json:"totalRecords"`
	Valid     int `json:"validRecords"`
	Duplicate int `json:"duplicateRecords"`
	Error     int `json:"errorRecords"`
}

// Summarize computes Statistics over records.
func Summarize(records []Record) Statistics {
	st := Statistics{Total: len(records)}
	for _, r := range records {
		if StatusValid.Matches(r) {
			st.Valid++
		}
		if StatusDuplicate.Matches(r) {
			st.Duplicate++
		}
		if StatusError.Matches(r) {
			st.Error++
		}
	}
	return st
}

// FileDescriptor describes one successful ingest.
type FileDescriptor struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	Statistics
	UploadedAt time.Time `json:"uploadedAt"`
}

// Status is a review filter.
type Status string

const (
	StatusAll       Status = "all"
	StatusValid     Status = "valid"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

// ParseStatus maps a query value to a Status; ok is false for unknown values.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusAll, StatusValid, StatusDuplicate, StatusError:
		return st, true
	case "":
		return StatusAll, true
	}
	return "", false
}

// Matches reports whether r belongs to the status bucket.
func (s Status) Matches(r Record) bool {
	switch s {
	case StatusValid:
		return !r.HasErrors && !r.IsDuplicate
	case StatusDuplicate:
		return r.IsDuplicate
	case StatusError:
		return r.HasErrors
	default:
		return true
	}
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Attended         *string `json:"attended"`
	UserName         *string `json:"userName"`
	FirstName        *string `json:"firstName"`
	LastName         *string `json:"lastName"`
	Email            *string `json:"email"`
	RegistrationTime *string `json:"registrationTime"`
	ApprovalStatus   *string `json:"approvalStatus"`
	JoinTime         *string `json:"joinTime"`
	LeaveTime        *string `json:"leaveTime"`
	SessionDuration  *int    `json:"sessionDuration"`
	IsGuest          *string `json:"isGuest"`
	Country          *string `json:"country"`
	PhoneNumber      *string `json:"phoneNumber"`

	// Set by the service after re-validation, never decoded from requests.
	HasErrors     *bool     `json:"-"`
	ErrorMessages *[]string `json:"-"`
}

// Apply merges p onto r field by field. Text values are trimmed and the email
// is lowercased so stored records stay normalized.
func (p Patch) Apply(r *Record) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&r.Attended, p.Attended)
	set(&r.UserName, p.UserName)
	set(&r.FirstName, p.FirstName)
	set(&r.LastName, p.LastName)
	if p.Email != nil {
		r.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	set(&r.RegistrationTime, p.RegistrationTime)
	set(&r.ApprovalStatus, p.ApprovalStatus)
	set(&r.JoinTime, p.JoinTime)
	set(&r.LeaveTime, p.LeaveTime)
	if p.SessionDuration != nil {
		d := *p.SessionDuration
		r.SessionDuration = &d
	}
	set(&r.IsGuest, p.IsGuest)
	set(&r.Country, p.Country)
	set(&r.PhoneNumber, p.PhoneNumber)
	if p.HasErrors != nil {
		r.HasErrors = *p.HasErrors
	}
	if p.ErrorMessages != nil {
		r.ErrorMessages = append([]string(nil), (*p.ErrorMessages)...)
		if len(r.ErrorMessages) == 0 {
			r.ErrorMessages = nil
		}
	}
}
