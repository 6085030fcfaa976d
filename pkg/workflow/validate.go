package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/task"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = validate.RegisterValidation("nonempty", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		_, err := task.ParsePriority(fl.Field().String())
		return err == nil
	})
}

func validateInput(op string, in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindInvalidInput, op, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required", "nonempty":
			msgs = append(msgs, e.Field()+" is required")
		case "priority":
			msgs = append(msgs, fmt.Sprintf("invalid priority %q: must be one of low, medium, high", e.Value()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("invalid email %q", e.Value()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Field(), e.Tag()))
		}
	}
	return apperr.InvalidInput(op, "%s", strings.Join(msgs, "; "))
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC 3339, "2006-01-02 15:04:05" and "2006-01-02".
// Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use RFC 3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD", s)
}
