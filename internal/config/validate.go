package config

import "fmt"

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedParsers is the set of valid parser names for checks.
var recognizedParsers = map[string]bool{
	"eslint":     true,
	"prettier":   true,
	"typescript": true,
	"vitest":     true,
	"npm-audit":  true,
	"generic":    true,
}

// Validate checks a RunConfig for structural and semantic errors. It
// returns a slice of all validation errors found (empty if valid).
func Validate(cfg *RunConfig) []ValidationError {
	var errs []ValidationError

	if cfg.Owner == "" {
		errs = append(errs, ValidationError{Field: "owner", Message: "is required"})
	}
	if cfg.Repo == "" {
		errs = append(errs, ValidationError{Field: "repo", Message: "is required"})
	}
	if cfg.IssueNumber <= 0 {
		errs = append(errs, ValidationError{Field: "issue_number", Message: "must be a positive integer"})
	}

	for _, required := range []string{"build", "test"} {
		if _, ok := cfg.Checks[required]; !ok {
			errs = append(errs, ValidationError{
				Field:   "checks",
				Message: fmt.Sprintf("missing required check %q (used by the BUILDING/TESTING handlers)", required),
			})
		}
	}

	for name, check := range cfg.Checks {
		if check.Command == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("checks.%s.command", name),
				Message: "is required",
			})
		}
		if check.Parser != "" && !recognizedParsers[check.Parser] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("checks.%s.parser", name),
				Message: fmt.Sprintf("unrecognized parser %q", check.Parser),
			})
		}
	}

	return errs
}
