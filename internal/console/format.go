package console

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/franckalain/leafmetric/internal/models"
)

// MinPasswordLength is the shortest password the forms accept
const MinPasswordLength = 6

// FormatGrade renders the grade line of a result, e.g. "Grade: OP1 (87.0%)"
func FormatGrade(p models.Prediction) string {
	return fmt.Sprintf("Grade: %s (%.1f%%)", p.Grade, p.GradeConfidence*100)
}

// FormatCategory renders the category line of a result, e.g. "Category: 2 (75.0%)"
func FormatCategory(p models.Prediction) string {
	return fmt.Sprintf("Category: %d (%.1f%%)", p.Category, p.CategoryConfidence*100)
}

// Initials returns up to two uppercase initials for the avatar
func Initials(fullName string) string {
	names := strings.Fields(fullName)
	switch len(names) {
	case 0:
		return "?"
	case 1:
		return firstUpper(names[0])
	default:
		return firstUpper(names[0]) + firstUpper(names[1])
	}
}

func firstUpper(word string) string {
	r, _ := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r))
}

// CanLogin reports whether the login form may be submitted
func CanLogin(email, password string) bool {
	return strings.TrimSpace(email) != "" &&
		strings.TrimSpace(password) != "" &&
		utf8.RuneCountInString(password) >= MinPasswordLength
}

// RegisterForm is the registration form as typed by the user
type RegisterForm struct {
	Name       string
	Email      string
	Experience string
	Password   string
	Confirm    string
}

// CanSubmit reports whether the registration form may be submitted
func (f RegisterForm) CanSubmit() bool {
	return strings.TrimSpace(f.Name) != "" &&
		strings.TrimSpace(f.Email) != "" &&
		strings.TrimSpace(f.Password) != "" &&
		strings.TrimSpace(f.Confirm) != "" &&
		utf8.RuneCountInString(f.Password) >= MinPasswordLength &&
		f.Password == f.Confirm
}
