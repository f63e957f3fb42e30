package model

import "fmt"

// Configuration error kinds. Surfaced during validation, never at
// request time.
const (
	ErrInvalidGuardrail    = "invalid_guardrail"
	ErrInvalidTeam         = "invalid_team"
	ErrInvalidKey          = "invalid_key"
	ErrInvalidModel        = "invalid_model"
	ErrInvalidInheritance  = "invalid_inheritance"
	ErrCircularInheritance = "circular_inheritance"
	ErrInvalidScope        = "invalid_scope"
	ErrInvalidSyntax       = "invalid_syntax"
)

// PolicyConfigError is one typed validation finding. Whether it blocks
// activation depends on which list it lands in (Errors vs Warnings).
type PolicyConfigError struct {
	PolicyName string `json:"policy_name"`
	ErrorType  string `json:"error_type"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Value      string `json:"value,omitempty"`
}

func (e PolicyConfigError) String() string {
	return fmt.Sprintf("[%s] policy %q: %s", e.ErrorType, e.PolicyName, e.Message)
}

// PolicyValidationResult is the outcome of validating a candidate config.
// Valid is false iff Errors is non-empty; warnings never block.
type PolicyValidationResult struct {
	Valid    bool                `json:"valid"`
	Errors   []PolicyConfigError `json:"errors"`
	Warnings []PolicyConfigError `json:"warnings"`
}
