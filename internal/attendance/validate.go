package attendance

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Messages shown to reviewers. They are part of the API contract.
const (
	MsgAttendedRequired  = "حقل الحضور مطلوب"
	MsgUserNameRequired  = "اسم المستخدم مطلوب"
	MsgFirstNameRequired = "الاسم الأول مطلوب"
	MsgFirstNameDash     = "الاسم الأول لا يمكن أن يكون فارغاً أو '--'"
	MsgLastNameRequired  = "اسم العائلة مطلوب"
	MsgLastNameDash      = "اسم العائلة لا يمكن أن يكون فارغاً أو '--'"
	MsgEmailInvalid      = "البريد الإلكتروني غير صحيح - يجب أن يحتوي على @ و ."
	MsgRegistrationTime  = "وقت التسجيل مطلوب"
	MsgPhoneDigits       = "رقم الهاتف يجب أن يحتوي على أرقام فقط"
)

var (
	// \p{Z} and U+FEFF widen \s to Unicode spaces.
	emailPattern = regexp.MustCompile(`^[^\s\p{Z}\x{FEFF}@]+@[^\s\p{Z}\x{FEFF}@]+\.[^\s\p{Z}\x{FEFF}@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]+$`)
)

// rowRules mirrors Fields with the constraints a stored row must satisfy.
// Field order decides message order.
type rowRules struct {
	Attended         string `validate:"present"`
	UserName         string `validate:"required"`
	FirstName        string `validate:"required,notdash"`
	LastName         string `validate:"required,notdash"`
	Email            string `validate:"required,attendee_email"`
	RegistrationTime string `validate:"required"`
	PhoneNumber      string `validate:"omitempty,digits_phone"`
}

var ruleMessages = map[string]map[string]string{
	"Attended":         {"present": MsgAttendedRequired},
	"UserName":         {"required": MsgUserNameRequired},
	"FirstName":        {"required": MsgFirstNameRequired, "notdash": MsgFirstNameDash},
	"LastName":         {"required": MsgLastNameRequired, "notdash": MsgLastNameDash},
	"Email":            {"required": MsgEmailInvalid, "attendee_email": MsgEmailInvalid},
	"RegistrationTime": {"required": MsgRegistrationTime},
	"PhoneNumber":      {"digits_phone": MsgPhoneDigits},
}

// Validator checks decoded rows. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the attendee rules.
func NewValidator() *Validator {
	v := validator.New()
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("present", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	must("notdash", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		return s != "" && s != "--"
	})
	must("attendee_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	must("digits_phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	return &Validator{v: v}
}

// ValidPhone reports whether s is empty or digits with an optional leading +
// once whitespace is removed.
func ValidPhone(s string) bool {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return s == "" || phonePattern.MatchString(s)
}

// Validate returns every failed rule as a localized message, in field order.
// An empty result means the row is valid.
func (v *Validator) Validate(f Fields) []string {
	err := v.v.Struct(rowRules{
		Attended:         f.Attended,
		UserName:         f.UserName,
		FirstName:        f.FirstName,
		LastName:         f.LastName,
		Email:            f.Email,
		RegistrationTime: f.RegistrationTime,
		PhoneNumber:      f.PhoneNumber,
	})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if msg, ok := ruleMessages[fe.StructField()][fe.Tag()]; ok {
			msgs = append(msgs, msg)
			continue
		}
		msgs = append(msgs, fe.Error())
	}
	return msgs
}
