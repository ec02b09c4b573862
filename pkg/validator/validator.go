package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

var timeSlotLayouts = []string{"3:04 PM", "03:04 PM", "3:04PM", "15:04"}

// Validator checks request structs and reports every violation at once.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Validator)

// WithClock fixes the notion of "today" used by the notpast rule.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		d, ok := field.Interface().(model.Date)
		if !ok || d.IsZero() {
			return nil
		}
		return d.Time
	}, model.Date{})

	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		id, ok := field.Interface().(uuid.UUID)
		if !ok || id == uuid.Nil {
			return nil
		}
		return id.String()
	}, uuid.UUID{})

	mustRegister(v.validate, "notblank", validators.NotBlank)
	mustRegister(v.validate, "notpast", v.notPast)
	mustRegister(v.validate, "timeslot", isTimeSlot)

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Struct validates s. The error, if any, is an *errors.AppError of kind
// Validation listing every offending field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.BadRequest("invalid request", err)
	}

	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fieldPath(fe),
			Message: message(fe),
		})
	}
	return apperrors.Validation(fields)
}

// Today returns the current calendar day according to the validator clock.
func (v *Validator) Today() model.Date {
	return model.DateOf(v.now())
}

func (v *Validator) notPast(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return !model.DateOf(t).Before(v.Today())
}

func isTimeSlot(fl validator.FieldLevel) bool {
	_, err := ParseTimeSlot(fl.Field().String())
	return err == nil
}

// ParseTimeSlot parses a time of day such as "10:00 AM" or "14:30".
func ParseTimeSlot(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeSlotLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time of day %q", s)
}

// fieldPath drops the root struct name: "medicines[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	kind := fe.Kind()
	switch fe.Tag() {
	case "required", "required_without", "required_if":
		return "is required"
	case "min":
		switch kind {
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		switch kind {
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("must contain at most %s entries", fe.Param())
		case reflect.String:
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "notblank":
		return "must not be blank"
	case "notpast":
		return "must not be in the past"
	case "timeslot":
		return "must be a time of day such as 10:00 AM"
	}
	return fmt.Sprintf("failed the %s rule", fe.Tag())
}
