package validate

// ValidationResult aggregates errors and warnings from a validation pass.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid reports whether the result contains no errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}
