package plan

import (
	"errors"
	"fmt"
)

// Kind classifies plan loading failures. All kinds are fatal at startup and
// at day rollover.
type Kind int

const (
	KindPlanNotFound Kind = iota + 1
	KindRequiredAttributeMissing
	KindBadTimeFormat
	KindFileNotFound
	KindInvalidWindow
)

func (k Kind) String() string {
	switch k {
	case KindPlanNotFound:
		return "plan_not_found"
	case KindRequiredAttributeMissing:
		return "required_attribute_missing"
	case KindBadTimeFormat:
		return "bad_time_format"
	case KindFileNotFound:
		return "file_not_found"
	case KindInvalidWindow:
		return "invalid_window"
	default:
		return "unknown"
	}
}

// Error is the single error type returned for plan problems.
type Error struct {
	Kind      Kind
	Weekday   string
	Attribute string
	Path      string
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindPlanNotFound:
		return fmt.Sprintf("plan for %s not found, not doing anything", e.Weekday)
	case KindRequiredAttributeMissing:
		return fmt.Sprintf("required attribute %s missing for %s plan", e.Attribute, e.Weekday)
	case KindBadTimeFormat:
		return fmt.Sprintf("badly formatted time in %s; make sure it follows HH:MM format", e.Weekday)
	case KindFileNotFound:
		if e.Err != nil {
			return fmt.Sprintf("couldn't read file %s: %v", e.Path, e.Err)
		}
		return fmt.Sprintf("couldn't read file %s", e.Path)
	case KindInvalidWindow:
		return fmt.Sprintf("event in %s plan ends before it starts (%s)", e.Weekday, e.Attribute)
	default:
		return "plan error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is (or wraps) a plan error of kind k.
func IsKind(err error, k Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == k
}

func planNotFound(weekday string) error {
	return &Error{Kind: KindPlanNotFound, Weekday: weekday}
}

func attributeMissing(attribute, weekday string) error {
	return &Error{Kind: KindRequiredAttributeMissing, Attribute: attribute, Weekday: weekday}
}

func badTimeFormat(weekday string, cause error) error {
	return &Error{Kind: KindBadTimeFormat, Weekday: weekday, Err: cause}
}

func fileNotFound(path string, cause error) error {
	return &Error{Kind: KindFileNotFound, Path: path, Err: cause}
}

func invalidWindow(weekday, window string) error {
	return &Error{Kind: KindInvalidWindow, Weekday: weekday, Attribute: window}
}
