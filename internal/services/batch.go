package services

import (
	"errors"
	"fmt"
	"strings"
)

// ItemError is one failure recorded while processing a batch.
type ItemError struct {
	Item string
	Err  error
}

func (e ItemError) Error() string {
	if e.Err == nil {
		return e.Item
	}
	return fmt.Sprintf("%s: %v", e.Item, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Join combines failures into one error, or nil when there are none.
func Join(items []ItemError) error {
	if len(items) == 0 {
		return nil
	}
	errs := make([]error, len(items))
	for i, item := range items {
		errs[i] = item
	}
	return errors.Join(errs...)
}

// Summarize renders the end-of-batch error listing. It returns an empty string
// when there are no failures.
func Summarize(process string, items []ItemError) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	noun := "errors"
	if len(items) == 1 {
		noun = "error"
	}
	fmt.Fprintf(&b, "There were %d %s during the %s:\n", len(items), noun, process)
	for _, item := range items {
		fmt.Fprintf(&b, "  * %s\n", item.Error())
	}
	return b.String()
}
