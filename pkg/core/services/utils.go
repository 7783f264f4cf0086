package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
)

// clock is replaced in tests
var clock = time.Now

// newID is replaced in tests
var newID = func() string { return uuid.NewString() }

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the API
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// GmailClient defines the operations needed to send emails
type GmailClient interface {
	SendEmail(to, subject, body string) error
}

// StaffNotifier posts operational alerts to the staff channel
type StaffNotifier interface {
	NotifyStaff(ctx context.Context, text string) error
}

// FailedEmail represents a member whose email could not be sent
type FailedEmail struct {
	MemberID    string
	DisplayName string
	Email       string
	Error       string
}

// validateRequest runs struct validation and turns failures into ErrInvalidRequest
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", policy.ErrInvalidRequest, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", policy.ErrInvalidRequest, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "eq":
		if fe.Param() == "true" {
			return fe.Field() + " must be agreed to"
		}
		return fmt.Sprintf("%s must equal %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), lengthOrValue(fe))
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), lengthOrValue(fe))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", fe.Field(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func lengthOrValue(fe validator.FieldError) string {
	if fe.Kind() == reflect.String {
		return fe.Param() + " characters"
	}
	return fe.Param()
}

// notifyStaff sends a staff alert if a notifier is configured. Failures are
// returned for logging only; callers never fail the request on them.
func notifyStaff(ctx context.Context, notifier StaffNotifier, text string) error {
	if notifier == nil {
		return nil
	}
	return notifier.NotifyStaff(ctx, text)
}
