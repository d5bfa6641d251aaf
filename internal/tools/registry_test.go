package tools

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func testRegistry() *Registry {
	r := NewRegistry(slog.Default())
	r.Register(NewEchoTool(), true)
	return r
}

func TestEchoExecution(t *testing.T) {
	r := testRegistry()

	res := r.Execute(context.Background(), "echo", map[string]any{
		"message":   "hello",
		"uppercase": true,
	})
	if !res.Success {
		t.Fatalf("Expected success, got error %q", res.Error)
	}
	if res.Data["echo"] != "HELLO" {
		t.Errorf("Expected HELLO, got %v", res.Data["echo"])
	}
	if res.Data["original"] != "hello" {
		t.Errorf("Expected original hello, got %v", res.Data["original"])
	}
	if res.Metadata["tool_name"] != "echo" {
		t.Errorf("Expected tool_name stamp, got %v", res.Metadata["tool_name"])
	}
	if res.Metadata["tool_version"] == "" {
		t.Error("Expected tool_version stamp")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := testRegistry()
	res := r.Execute(context.Background(), "nope", nil)
	if res.Success {
		t.Fatal("Expected failure for unknown tool")
	}
	if !strings.Contains(res.Error, "not found") {
		t.Errorf("Expected not-found error, got %q", res.Error)
	}
	if res.Metadata["tool_name"] != "nope" {
		t.Errorf("Expected requested name stamped, got %v", res.Metadata["tool_name"])
	}
}

func TestExecuteDisabledTool(t *testing.T) {
	r := testRegistry()
	if !r.Disable("echo") {
		t.Fatal("Expected Disable to succeed")
	}

	res := r.Execute(context.Background(), "echo", map[string]any{"message": "hi"})
	if res.Success {
		t.Fatal("Expected failure for disabled tool")
	}
	if !strings.Contains(res.Error, "disabled") {
		t.Errorf("Expected disabled error, got %q", res.Error)
	}

	// re-enabling restores dispatch
	if !r.Enable("echo") {
		t.Fatal("Expected Enable to succeed")
	}
	if res := r.Execute(context.Background(), "echo", map[string]any{"message": "hi"}); !res.Success {
		t.Errorf("Expected success after re-enable, got %q", res.Error)
	}
}

func TestExecuteInvalidParameters(t *testing.T) {
	r := testRegistry()

	res := r.Execute(context.Background(), "echo", map[string]any{})
	if res.Success {
		t.Fatal("Expected failure for missing required param")
	}
	if !strings.Contains(res.Error, "message") {
		t.Errorf("Expected offending field named, got %q", res.Error)
	}

	res = r.Execute(context.Background(), "echo", map[string]any{"message": 42})
	if res.Success || !strings.Contains(res.Error, "message") {
		t.Errorf("Expected type error naming message, got %q", res.Error)
	}
}

func TestValidateParams(t *testing.T) {
	spec := Spec{Params: []Param{
		{Name: "count", Type: ParamNumber, Required: true},
		{Name: "opts", Type: ParamObject},
	}}

	if err := ValidateParams(spec, map[string]any{"count": float64(3)}); err != nil {
		t.Errorf("Expected float64 to satisfy number, got %v", err)
	}
	if err := ValidateParams(spec, map[string]any{"count": 3, "opts": map[string]any{}}); err != nil {
		t.Errorf("Expected valid params, got %v", err)
	}
	err := ValidateParams(spec, map[string]any{"count": "three"})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("Expected ErrInvalidParameters, got %v", err)
	}
}

type panicTool struct{}

func (panicTool) Spec() Spec {
	return Spec{Name: "boom", Version: "0.1.0"}
}

func (panicTool) Run(ctx context.Context, params map[string]any) (*Result, error) {
	panic("kaboom")
}

func TestExecuteContainsPanic(t *testing.T) {
	r := NewRegistry(slog.Default())
	r.Register(panicTool{}, true)

	res := r.Execute(context.Background(), "boom", nil)
	if res.Success {
		t.Fatal("Expected failure from panicking tool")
	}
	if !strings.Contains(res.Error, "kaboom") {
		t.Errorf("Expected panic message in error, got %q", res.Error)
	}
}

func TestCatalogAndEnabledSpecs(t *testing.T) {
	r := NewRegistry(slog.Default())
	r.Register(NewEchoTool(), true)
	r.Register(panicTool{}, false)

	catalog := r.Catalog()
	if len(catalog) != 2 {
		t.Fatalf("Expected 2 catalog entries, got %d", len(catalog))
	}
	if catalog[0].Spec.Name != "echo" || !catalog[0].Enabled {
		t.Error("Expected echo first and enabled")
	}
	if catalog[1].Spec.Name != "boom" || catalog[1].Enabled {
		t.Error("Expected boom second and disabled")
	}

	specs := r.EnabledSpecs()
	if len(specs) != 1 || specs[0].Name != "echo" {
		t.Errorf("Expected only echo enabled, got %v", specs)
	}
}

func TestToggleUnknownTool(t *testing.T) {
	r := testRegistry()
	if r.Enable("nope") || r.Disable("nope") {
		t.Error("Expected toggles on unknown tool to report false")
	}
}
