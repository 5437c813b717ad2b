package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	phoneRe    = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)
)

const passwordSpecials = "@$!%*#?&"

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return len(PasswordProblems(fl.Field().String())) == 0
	})
}

// Validate checks struct tags and returns field -> message, or nil when v is valid.
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errors["_"] = err.Error()
		return errors
	}
	for _, fe := range verrs {
		errors[fe.Field()] = message(fe)
	}
	return errors
}

// PasswordProblems lists the password policy rules secret does not meet.
func PasswordProblems(secret string) []string {
	var missing []string
	if len(secret) < 8 {
		missing = append(missing, "at least 8 characters")
	}
	if !strings.ContainsAny(secret, "abcdefghijklmnopqrstuvwxyz") {
		missing = append(missing, "1 lowercase letter")
	}
	if !strings.ContainsAny(secret, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		missing = append(missing, "1 uppercase letter")
	}
	if !strings.ContainsAny(secret, "0123456789") {
		missing = append(missing, "1 number")
	}
	if !strings.ContainsAny(secret, passwordSpecials) {
		missing = append(missing, "1 special character ("+passwordSpecials+")")
	}
	return missing
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "username":
		return "can only contain letters, numbers, and underscores"
	case "phone":
		return "must be a valid phone number"
	case "password":
		return "must include: " + strings.Join(PasswordProblems(fe.Value().(string)), ", ")
	case "eqfield":
		return "does not match"
	default:
		return fe.Tag()
	}
}
