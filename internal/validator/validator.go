package validator

import (
	"errors"
	"fmt"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var hhmmRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors for an AppError details map.
func (v ValidationErrors) Details() map[string]any {
	fields := make(map[string]any, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return map[string]any{"fields": fields}
}

type Validator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func New(log *logger.Logger) *Validator {
	v := validator.New()

	if err := v.RegisterValidation("hhmm", validateHHMM); err != nil {
		log.Fatal("Failed to register 'hhmm' validator", "error", err)
	}
	if err := v.RegisterValidation("equipment_tags", validateEquipmentTags); err != nil {
		log.Fatal("Failed to register 'equipment_tags' validator", "error", err)
	}

	return &Validator{
		validate: v,
		logger:   log,
	}
}

func validateHHMM(fl validator.FieldLevel) bool {
	return hhmmRegex.MatchString(fl.Field().String())
}

// validateEquipmentTags requires non-blank tags without case-insensitive
// duplicates.
func validateEquipmentTags(fl validator.FieldLevel) bool {
	tags, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if key == "" || len(key) > 100 {
			return false
		}
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}

func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *Validator) ValidateResource(r *model.Resource) error {
	if err := v.Struct(r); err != nil {
		return err
	}
	return validateOperatingHours(r.OperatingStart, r.OperatingEnd)
}

func (v *Validator) ValidateResourceUpdate(u *model.ResourceUpdate) error {
	return v.Struct(u)
}

func validateOperatingHours(start, end string) error {
	if (start == "") != (end == "") {
		return ValidationErrors{{
			Field:   "OperatingEnd",
			Message: "operating_start and operating_end must be set together",
		}}
	}
	if start != "" && end <= start {
		return ValidationErrors{{
			Field:   "OperatingEnd",
			Message: "operating_end must be after operating_start",
		}}
	}
	return nil
}

// ValidateRequest applies defaults, checks the request and resolves its
// interval.
func (v *Validator) ValidateRequest(r *model.StructuredRequest) (model.Interval, error) {
	r.ApplyDefaults()
	if err := v.Struct(r); err != nil {
		return model.Interval{}, err
	}
	interval, err := r.Interval()
	if err != nil {
		return model.Interval{}, ValidationErrors{{
			Field:   "EndTime",
			Message: err.Error(),
		}}
	}
	return interval, nil
}

func (v *Validator) ValidateProposal(p *model.Proposal) error {
	return v.Struct(p)
}

func (v *Validator) ValidateRequester(r *model.Requester) error {
	return v.Struct(r)
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "ne":
			message = fmt.Sprintf("%s must not be %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "hhmm":
			message = fmt.Sprintf("%s must be in HH:MM format (00:00-23:59)", err.Field())
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "equipment_tags":
			message = fmt.Sprintf("%s must contain non-blank, unique tags", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
