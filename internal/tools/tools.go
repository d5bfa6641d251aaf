package tools

import (
	"context"
	"errors"
	"fmt"
)

// Failure taxonomy for tool dispatch. Failures surface as Result values;
// these sentinels classify the Error field via errors.Is on ResultError.
var (
	ErrNotFound          = errors.New("tool not found")
	ErrDisabled          = errors.New("tool disabled")
	ErrInvalidParameters = errors.New("invalid parameters")
)

// ParamType is the declared type of a tool parameter
type ParamType string

const (
	ParamString ParamType = "string"
	ParamBool   ParamType = "bool"
	ParamNumber ParamType = "number"
	ParamObject ParamType = "object"
)

// Param declares one parameter of a tool's contract
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
}

// Spec is the static catalog entry for a registered tool
type Spec struct {
	Name                 string  `json:"name"`
	Description          string  `json:"description"`
	Version              string  `json:"version"`
	RequiresConfirmation bool    `json:"requires_confirmation"`
	EstimatedTime        string  `json:"estimated_time,omitempty"`
	Params               []Param `json:"params"`
}

// Result is the structured outcome of a tool execution
type Result struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Failure builds a failed Result from an error
func Failure(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}

// Tool is a named, independently executable capability
type Tool interface {
	// Spec returns the tool's static catalog entry
	Spec() Spec

	// Run executes the tool with validated parameters. A returned error is
	// converted by the registry into a failed Result.
	Run(ctx context.Context, params map[string]any) (*Result, error)
}

// ValidateParams checks raw parameters against a spec's declared contract.
// The returned error names the first offending field.
func ValidateParams(spec Spec, params map[string]any) error {
	for _, p := range spec.Params {
		v, present := params[p.Name]
		if !present {
			if p.Required {
				return fmt.Errorf("%w: missing required field %q", ErrInvalidParameters, p.Name)
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return fmt.Errorf("%w: field %q must be %s", ErrInvalidParameters, p.Name, p.Type)
		}
	}
	return nil
}

func typeMatches(t ParamType, v any) bool {
	switch t {
	case ParamString:
		_, ok := v.(string)
		return ok
	case ParamBool:
		_, ok := v.(bool)
		return ok
	case ParamNumber:
		switch v.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case ParamObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}
