package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// usernames are enrollment-store keys, so keep them filesystem and URL safe
func validateUsername(fl validator.FieldLevel) bool {
	username := fl.Field().String()
	if len(username) < 2 || len(username) > 64 {
		return false
	}
	regex := regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	return regex.MatchString(username)
}

func validateStruct(payload interface{}) *[]error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	errMsgs := []error{}
	for _, err := range err.(validator.ValidationErrors) {
		errMsgs = append(errMsgs, fmt.Errorf("%s failed validation for rule %s", strings.ToLower(err.Field()), err.Tag()))
	}
	return &errMsgs
}

func validateField(value any, rules string) error {
	return validate.Var(value, rules)
}
