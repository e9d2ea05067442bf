package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/go-playground/validator/v10"
)

// FieldErrors maps JSON field paths to a human-readable message
type FieldErrors map[string]string

// Error implements the error interface
func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct validates struct tags and returns FieldErrors keyed by JSON path
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := FieldErrors{}
	for _, fe := range ve {
		fields[fieldPath(fe.Namespace())] = Message(fe)
	}
	return fields
}

// fieldPath drops the struct name prefix from a validator namespace
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// Message creates a human-readable validation error message
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Must contain at most %s entries", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Must contain at least %s entries", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// Date layouts accepted for validity timestamps, most specific first
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ErrInvalidDate is returned by ParseDate for unparseable input
var ErrInvalidDate = errors.New("invalid ISO-8601 date")

// ParseDate parses an ISO-8601 date or timestamp. Values without a zone are read as UTC,
// a bare date is midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ValidateProposalPayload checks a proposal creation request: struct tags, a parseable
// validUntil in the future, a known product group and sane item values. It returns
// FieldErrors listing every problem found.
func ValidateProposalPayload(req *domain.CreateProposalRequest, now time.Time) error {
	fields := FieldErrors{}
	if err := Struct(req); err != nil {
		var fe FieldErrors
		if !errors.As(err, &fe) {
			return err
		}
		for k, v := range fe {
			fields[k] = v
		}
	}

	if _, exists := fields["validUntil"]; !exists {
		validUntil, err := ParseDate(req.ValidUntil)
		switch {
		case err != nil:
			fields["validUntil"] = domain.GetValidationMessage("datetime")
		case !validUntil.After(now):
			fields["validUntil"] = domain.GetValidationMessage("future")
		}
	}

	if req.ProductGroup != nil && !IsKnownProductGroup(*req.ProductGroup) {
		fields["productGroup"] = "Must be one of: generic telhas estrutural acabamento hidraulica"
	}

	for i, item := range req.Items {
		if strings.TrimSpace(SanitizeText(item.Description)) == "" {
			fields[fmt.Sprintf("items[%d].description", i)] = "description is required"
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// IsKnownProductGroup reports whether g is one of the supported product groups
func IsKnownProductGroup(g domain.ProductGroup) bool {
	switch g {
	case domain.ProductGroupGeneric, domain.ProductGroupRoofing, domain.ProductGroupStructural,
		domain.ProductGroupFinishing, domain.ProductGroupPlumbing:
		return true
	}
	return false
}
