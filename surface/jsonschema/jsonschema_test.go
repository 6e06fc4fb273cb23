package jsonschema_test

import (
	"encoding/json"
	"testing"

	"github.com/coregx/conform/ast"
	"github.com/coregx/conform/grammar"
	"github.com/coregx/conform/rxdfa"
	"github.com/coregx/conform/surface/jsonschema"
)

func decode(t *testing.T, src string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(src), &v); err != nil {
		t.Fatalf("json.Unmarshal(%q): %v", src, err)
	}
	return v
}

func TestTranslate_ObjectWithRequiredNumber(t *testing.T) {
	schema := decode(t, `{"type":"object","properties":{"a":{"type":"number"}},"required":["a"]}`)
	tree, err := jsonschema.Translate(schema)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	start, ok := tree.Options["start"].(string)
	if !ok || start == "" {
		t.Fatal("expected Options[\"start\"] to name the root rule")
	}
	if len(tree.Rules) == 0 {
		t.Fatal("expected at least one generated rule")
	}

	// The translated tree must elaborate cleanly as a standalone grammar.
	if _, err := grammar.Elaborate(tree, grammar.DefaultLimits()); err != nil {
		t.Fatalf("Elaborate(translated schema): %v", err)
	}
}

func TestTranslate_Enum(t *testing.T) {
	schema := decode(t, `{"enum":["a","b",1]}`)
	tree, err := jsonschema.Translate(schema)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if _, err := grammar.Elaborate(tree, grammar.DefaultLimits()); err != nil {
		t.Fatalf("Elaborate(enum schema): %v", err)
	}
}

func TestTranslate_ArrayOfStrings(t *testing.T) {
	schema := decode(t, `{"type":"array","items":{"type":"string"}}`)
	tree, err := jsonschema.Translate(schema)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if _, err := grammar.CompileSet([]*ast.Tree{tree}, []string{"json"}, grammar.DefaultLimits(), rxdfa.DefaultConfig()); err != nil {
		t.Fatalf("CompileSet(array schema): %v", err)
	}
}

func TestTranslate_InvalidSchemaShape(t *testing.T) {
	if _, err := jsonschema.Translate("not-an-object"); err == nil {
		t.Fatal("expected a non-object schema node to fail translation")
	}
}
