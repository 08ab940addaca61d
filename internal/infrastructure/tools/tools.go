package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/tetkool/concierge/internal/domain/tool"
)

var ErrInvalidArguments = errors.New("invalid tool arguments")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Register adds the course lookup and, when given, the manager notifier to the registry.
func Register(registry *tool.Registry, lookup *CourseLookup, notifier *ManagerNotifier) error {
	if err := registry.Register(lookup.Definition(), lookup.Handle); err != nil {
		return fmt.Errorf("register %s: %w", GetCoursesName, err)
	}
	if notifier == nil {
		return nil
	}
	if err := registry.Register(notifier.Definition(), notifier.Handle); err != nil {
		return fmt.Errorf("register %s: %w", SendEmailName, err)
	}
	return nil
}

func decodeArguments(arguments json.RawMessage, out any) error {
	if err := json.NewDecoder(bytes.NewReader(arguments)).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
