package api

import (
	"encoding/json"          // JSON encoding/decoding
	"errors"                 // Error classification
	"fmt"                    // Error wrapping
	"reflect"                // JSON field names
	"regexp"                 // Name patterns
	"strings"                // String manipulation
	"sync"                   // Register validators once
	"tabletop/internal/dice" // Dice notation limits

	"github.com/gin-gonic/gin/binding"       // Struct validation
	"github.com/go-playground/validator/v10" // Custom validation tags
	"github.com/sirupsen/logrus"             // Logging library
)

var (
	usernamePattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)
	campaignKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	registerOnce sync.Once
)

// RegisterValidators installs the custom binding tags on gin's validator.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logrus.Warn("Binding engine is not go-playground/validator, custom tags unavailable")
			return
		}
		// Report json field names rather than Go field names
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		must(v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		}))
		must(v.RegisterValidation("campaignkey", func(fl validator.FieldLevel) bool {
			return campaignKeyPattern.MatchString(fl.Field().String())
		}))
		must(v.RegisterValidation("dicenotation", func(fl validator.FieldLevel) bool {
			_, err := dice.Parse(fl.Field().String())
			return err == nil
		}))
	})
}

func must(err error) {
	if err != nil {
		logrus.Fatalf("register validator: %v", err)
	}
}

// describeBindError turns binding failures into a message naming the field
func describeBindError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describeField(fe))
		}
		return strings.Join(msgs, "; ")
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return "malformed JSON body"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	}
	return "invalid request"
}

func describeField(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "username":
		return field + " must be 3-32 letters, digits, '_' or '-'"
	case "campaignkey":
		return field + " must be 1-64 letters, digits, '_' or '-'"
	case "dicenotation":
		return fmt.Sprintf("%s must look like 2d6 or 20 (count 1-%d, size 1-%d)", field, dice.MaxCount, dice.MaxSize)
	default:
		return field + " is invalid"
	}
}
