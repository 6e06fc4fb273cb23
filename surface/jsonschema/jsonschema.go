// Package jsonschema translates a JSON Schema value into an ast.Tree,
// spec.md §1/§6's "JSON-Schema compiler: schema → TopLevelGrammar"
// collaborator. It is deliberately thin: no tuning knobs, minimal doc
// comments, the same "thin collaborator" texture surface/lark has.
//
// Grounded in original_source/parser/src/json/compiler.rs's handling of
// object/array/string/number/boolean/null, "properties"/"required",
// "enum" and "const" (SPEC_FULL.md's supplemented features list),
// re-expressed as a recursive-descent tree builder instead of the
// original's direct-to-grammar compilation. "additionalProperties" is not
// read.
//
// Output is compact JSON (no inter-token whitespace): the caller's
// surrounding grammar is free to wrap a %json element in its own %ignore
// policy if it wants whitespace tolerance.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/coregx/conform/ast"
)

// Translate compiles schema (a decoded JSON value: map[string]any,
// []any, string, float64, bool, or nil) into a Tree whose
// Options["start"] names the rule generated for the schema's root.
func Translate(schema any) (*ast.Tree, error) {
	t := &translator{tree: &ast.Tree{Name: "json", Options: map[string]any{}}}
	name, err := t.compileSchema(schema)
	if err != nil {
		return nil, err
	}
	t.tree.Options["start"] = name
	return t.tree, nil
}

type translator struct {
	tree *ast.Tree
	next int
}

func (t *translator) freshName(hint string) string {
	t.next++
	return fmt.Sprintf("__json_%s_%d", hint, t.next)
}

func (t *translator) addRule(name string, alts ...ast.AltDecl) {
	t.tree.Rules = append(t.tree.Rules, ast.RuleDecl{Name: name, Alts: alts})
}

func literalElem(lit string) ast.ElemDecl {
	return ast.ElemDecl{Kind: ast.ElemLiteral, Literal: lit, Min: 1, Max: 1}
}

func refElem(name string) ast.ElemDecl {
	return ast.ElemDecl{Kind: ast.ElemRuleRef, Name: name, Min: 1, Max: 1}
}

func regexElem(src string) ast.ElemDecl {
	return ast.ElemDecl{Kind: ast.ElemRegex, RegexSrc: src, Min: 1, Max: 1}
}

func refElemRep(name string, min, max int) ast.ElemDecl {
	return ast.ElemDecl{Kind: ast.ElemRuleRef, Name: name, Min: min, Max: max}
}

// compileSchema dispatches on the schema's shape, creating (and returning
// the name of) the rule that recognizes it.
func (t *translator) compileSchema(schema any) (string, error) {
	m, ok := schema.(map[string]any)
	if !ok {
		return "", fmt.Errorf("jsonschema: schema node must be an object, got %T", schema)
	}

	if v, ok := m["const"]; ok {
		return t.compileConst(v)
	}
	if v, ok := m["enum"]; ok {
		vals, ok := v.([]any)
		if !ok {
			return "", fmt.Errorf(`jsonschema: "enum" must be an array`)
		}
		return t.compileEnum(vals)
	}

	typ, _ := m["type"].(string)
	if typ == "" {
		if _, hasProps := m["properties"]; hasProps {
			typ = "object"
		} else if _, hasItems := m["items"]; hasItems {
			typ = "array"
		}
	}

	switch typ {
	case "object":
		return t.compileObject(m)
	case "array":
		return t.compileArray(m)
	case "string":
		return t.compileString(m)
	case "integer":
		return t.compileInteger()
	case "number":
		return t.compileNumber()
	case "boolean":
		return t.compileBoolean()
	case "null":
		return t.compileNull()
	case "":
		return t.compileAny()
	default:
		return "", fmt.Errorf("jsonschema: unsupported schema type %q", typ)
	}
}

func (t *translator) compileConst(v any) (string, error) {
	enc, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("jsonschema: const: %w", err)
	}
	name := t.freshName("const")
	t.addRule(name, ast.AltDecl{Elems: []ast.ElemDecl{literalElem(string(enc))}})
	return name, nil
}

func (t *translator) compileEnum(vals []any) (string, error) {
	var alts []ast.AltDecl
	for _, v := range vals {
		enc, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("jsonschema: enum: %w", err)
		}
		alts = append(alts, ast.AltDecl{Elems: []ast.ElemDecl{literalElem(string(enc))}})
	}
	name := t.freshName("enum")
	t.addRule(name, alts...)
	return name, nil
}

func (t *translator) compileBoolean() (string, error) {
	name := t.freshName("bool")
	t.addRule(name,
		ast.AltDecl{Elems: []ast.ElemDecl{literalElem("true")}},
		ast.AltDecl{Elems: []ast.ElemDecl{literalElem("false")}},
	)
	return name, nil
}

func (t *translator) compileNull() (string, error) {
	name := t.freshName("null")
	t.addRule(name, ast.AltDecl{Elems: []ast.ElemDecl{literalElem("null")}})
	return name, nil
}

// compileNumber matches any JSON number (spec-compliant RFC 8259 grammar).
func (t *translator) compileNumber() (string, error) {
	name := t.freshName("number")
	t.addRule(name, ast.AltDecl{Elems: []ast.ElemDecl{
		regexElem(`-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?`),
	}})
	return name, nil
}

// compileInteger matches the same grammar without a fractional part.
func (t *translator) compileInteger() (string, error) {
	name := t.freshName("integer")
	t.addRule(name, ast.AltDecl{Elems: []ast.ElemDecl{
		regexElem(`-?(0|[1-9][0-9]*)`),
	}})
	return name, nil
}

// compileString matches a JSON string literal. When "pattern" is present,
// the inner (unquoted) content is constrained to it instead of the
// generic "any escaped character" body.
func (t *translator) compileString(m map[string]any) (string, error) {
	name := t.freshName("string")
	if pat, ok := m["pattern"].(string); ok {
		t.addRule(name, ast.AltDecl{Elems: []ast.ElemDecl{
			literalElem(`"`),
			regexElem(pat),
			literalElem(`"`),
		}})
		return name, nil
	}
	t.addRule(name, ast.AltDecl{Elems: []ast.ElemDecl{
		regexElem(`"([^"\\]|\\.)*"`),
	}})
	return name, nil
}

// compileAny matches any well-formed JSON value, used when a schema node
// carries no recognizable constraint (the empty `{}` schema).
func (t *translator) compileAny() (string, error) {
	name := t.freshName("any")
	obj, err := t.compileObject(map[string]any{})
	if err != nil {
		return "", err
	}
	arr, err := t.compileArray(map[string]any{})
	if err != nil {
		return "", err
	}
	str, _ := t.compileString(map[string]any{})
	num, _ := t.compileNumber()
	b, _ := t.compileBoolean()
	n, _ := t.compileNull()
	t.addRule(name,
		ast.AltDecl{Elems: []ast.ElemDecl{refElem(obj)}},
		ast.AltDecl{Elems: []ast.ElemDecl{refElem(arr)}},
		ast.AltDecl{Elems: []ast.ElemDecl{refElem(str)}},
		ast.AltDecl{Elems: []ast.ElemDecl{refElem(num)}},
		ast.AltDecl{Elems: []ast.ElemDecl{refElem(b)}},
		ast.AltDecl{Elems: []ast.ElemDecl{refElem(n)}},
	)
	return name, nil
}

// compileArray matches a JSON array whose elements all satisfy "items"
// (single-schema form; tuple-validation arrays are out of scope, same as
// the original's non-tuple fast path). minItems only decides whether the
// empty array is allowed (absent or 0 allows it, any larger value requires
// at least one item); maxItems is not enforced.
func (t *translator) compileArray(m map[string]any) (string, error) {
	itemSchema, ok := m["items"]
	if !ok {
		itemSchema = map[string]any{}
	}
	itemRule, err := t.compileSchema(itemSchema)
	if err != nil {
		return "", err
	}
	min := intOr(m["minItems"], 0)
	max := intOr(m["maxItems"], -1)

	name := t.freshName("array")
	itemsName := t.freshName("arrayitems")

	// itemsName: (item (, item)*){min,max}, expressed as a rule ref
	// repetition over a single "one item" wrapper so grammar.Elaborate's
	// structural repeat-expansion handles the min/max bound.
	oneName := t.freshName("arrayitem")
	t.addRule(oneName, ast.AltDecl{Elems: []ast.ElemDecl{refElem(itemRule)}})

	t.addRule(itemsName, ast.AltDecl{Elems: []ast.ElemDecl{
		refElem(oneName),
		refElemRep(commaThen(t, oneName), 0, -1),
	}})

	switch {
	case min == 0:
		t.addRule(name,
			ast.AltDecl{Elems: []ast.ElemDecl{literalElem("[]")}},
			ast.AltDecl{Elems: []ast.ElemDecl{literalElem("["), refElem(itemsName), literalElem("]")}},
		)
	default:
		t.addRule(name, ast.AltDecl{Elems: []ast.ElemDecl{literalElem("["), refElem(itemsName), literalElem("]")}})
	}
	_ = max // item counts are not bounded beyond "at least one"
	return name, nil
}

// commaThen builds (and returns the name of) a small rule matching "," item.
func commaThen(t *translator, itemRuleName string) string {
	name := t.freshName("commathen")
	t.addRule(name, ast.AltDecl{Elems: []ast.ElemDecl{literalElem(","), refElem(itemRuleName)}})
	return name
}

// compileObject matches a JSON object. Declared "properties" are emitted
// in a fixed, deterministic order (sorted key order when the schema
// itself carries no ordering hint): required properties are mandatory,
// the rest are optional, each as "key":value, comma-joined. This keeps the
// generated grammar finite and decidable; "additionalProperties" is not
// read, so only the declared properties are generated.
func (t *translator) compileObject(m map[string]any) (string, error) {
	propsRaw, _ := m["properties"].(map[string]any)
	var required map[string]bool
	if req, ok := m["required"].([]any); ok {
		required = make(map[string]bool, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	keys := make([]string, 0, len(propsRaw))
	for k := range propsRaw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	name := t.freshName("object")
	if len(keys) == 0 {
		t.addRule(name, ast.AltDecl{Elems: []ast.ElemDecl{literalElem("{}")}})
		return name, nil
	}

	var fieldElems []ast.ElemDecl
	fieldElems = append(fieldElems, literalElem("{"))
	first := true
	for _, k := range keys {
		valRule, err := t.compileSchema(propsRaw[k])
		if err != nil {
			return "", fmt.Errorf("jsonschema: property %q: %w", k, err)
		}
		keyEnc, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		fieldName := t.freshName("field")
		t.addRule(fieldName, ast.AltDecl{Elems: []ast.ElemDecl{
			literalElem(string(keyEnc)), literalElem(":"), refElem(valRule),
		}})

		sep := ""
		if !first {
			sep = ","
		}
		first = false

		if required[k] {
			if sep != "" {
				fieldElems = append(fieldElems, literalElem(sep))
			}
			fieldElems = append(fieldElems, refElem(fieldName))
			continue
		}
		// Optional field: wrap "sep field" in a `?`.
		optName := t.freshName("optfield")
		t.addRule(optName, ast.AltDecl{Elems: []ast.ElemDecl{literalElem(sep), refElem(fieldName)}})
		fieldElems = append(fieldElems, refElemRep(optName, 0, 1))
	}
	fieldElems = append(fieldElems, literalElem("}"))

	t.addRule(name, ast.AltDecl{Elems: fieldElems})
	return name, nil
}

func intOr(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}
