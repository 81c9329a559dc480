package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var envNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	_ = v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("envname", func(fl validator.FieldLevel) bool {
		return envNameRe.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks the config for structural errors and cross references.
// All problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.Trigger.Cron != "" && c.Trigger.Interval != "" {
		problems = append(problems, "trigger: set either cron or interval, not both")
	}

	for i, t := range c.Notify.Targets {
		if _, ok := c.Services[t.Service]; !ok {
			problems = append(problems, fmt.Sprintf("notify.targets[%d]: unknown service %q", i, t.Service))
		}
	}
	if len(c.Notify.Targets) > 0 && c.Notify.Template == "" {
		problems = append(problems, "notify.template: required when notify targets are set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + ": required"
	case "duration":
		return fmt.Sprintf("%s: %q is not a positive duration", field, fe.Value())
	case "cronspec":
		return fmt.Sprintf("%s: %q is not a valid cron expression", field, fe.Value())
	case "envname":
		return fmt.Sprintf("%s: %q is not a valid environment variable name", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s: %q must be one of [%s]", field, fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s: failed %q", field, fe.Tag())
	}
}
