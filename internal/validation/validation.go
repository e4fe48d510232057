// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mmeshcher/foodcart/internal/model"
)

var (
	phoneRegex   = regexp.MustCompile(`^(\+91|0)?[6-9][0-9]{9}$`)
	pincodeRegex = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	cityRegex    = regexp.MustCompile(`^[\p{L}\s.\-]+$`)
)

const maxAddressLine = 150

// FieldError описывает ошибку в конкретном поле ввода.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NormalizePhone убирает пробелы, дефисы и скобки из номера телефона.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// IsValidPhone проверяет номер мобильного телефона.
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(NormalizePhone(phone))
}

// IsValidPincode проверяет почтовый индекс из шести цифр.
func IsValidPincode(pincode string) bool {
	return pincodeRegex.MatchString(strings.TrimSpace(pincode))
}

// CheckAddress возвращает первую найденную ошибку адреса или nil.
func CheckAddress(a model.Address) error {
	line1 := strings.TrimSpace(a.Line1)
	switch {
	case line1 == "":
		return &FieldError{Field: "line1", Message: "address line 1 is required"}
	case len(line1) > maxAddressLine:
		return &FieldError{Field: "line1", Message: "address line 1 is too long"}
	}

	if len(strings.TrimSpace(a.Line2)) > maxAddressLine {
		return &FieldError{Field: "line2", Message: "address line 2 is too long"}
	}

	city := strings.TrimSpace(a.City)
	switch {
	case city == "":
		return &FieldError{Field: "city", Message: "city is required"}
	case !cityRegex.MatchString(city):
		return &FieldError{Field: "city", Message: "city must only contain letters"}
	}

	if strings.TrimSpace(a.State) == "" {
		return &FieldError{Field: "state", Message: "state is required"}
	}

	if !IsValidPincode(a.Pincode) {
		return &FieldError{Field: "pincode", Message: "pincode must be 6 digits"}
	}

	return nil
}
