// Package nodes provides the built-in node handlers that need no external
// collaborators: manual_trigger, set_fields and template.
package nodes

import (
	"context"
	"strings"

	"github.com/BaSui01/openflow/types"
	"github.com/BaSui01/openflow/workflow"
)

// Built-in node type names.
const (
	TypeManualTrigger = "manual_trigger"
	TypeSetFields     = "set_fields"
	TypeTemplate      = "template"
)

// JSONPlaceholder is replaced by the template node with the payload's JSON.
const JSONPlaceholder = "{{json}}"

// Register adds the built-in handlers to registry.
func Register(registry *workflow.NodeRegistry) {
	registry.Register(workflow.NodeSpec{
		Type:        TypeManualTrigger,
		Description: "Starts a workflow with provided input data.",
		Handler:     workflow.HandlerFunc(ManualTrigger),
	})
	registry.Register(workflow.NodeSpec{
		Type:        TypeSetFields,
		Description: "Merges static fields into the input payload.",
		Handler:     workflow.HandlerFunc(SetFields),
	})
	registry.Register(workflow.NodeSpec{
		Type:        TypeTemplate,
		Description: "Builds text output from a template and payload.",
		Handler:     workflow.HandlerFunc(Template),
	})
}

// ManualTrigger returns its input unchanged.
func ManualTrigger(_ context.Context, _ types.Object, input types.Object) (types.Object, error) {
	return input, nil
}

// SetFields returns a copy of input with params["fields"] merged over it.
func SetFields(_ context.Context, params types.Object, input types.Object) (types.Object, error) {
	merged := input.Clone()
	raw, ok := params["fields"]
	if !ok {
		return merged, nil
	}
	fields, ok := raw.(types.Object)
	if !ok {
		return nil, types.NewError(types.ErrInvalidNodeParams, "set_fields.fields must be an object")
	}
	merged.Merge(fields)
	return merged, nil
}

// Template renders params["template"], replacing every {{json}} with the
// ASCII-escaped JSON of the input, and returns {text, payload}.
func Template(_ context.Context, params types.Object, input types.Object) (types.Object, error) {
	tpl := ""
	if raw, ok := params["template"]; ok {
		s, ok := raw.(types.String)
		if !ok {
			return nil, types.NewError(types.ErrInvalidNodeParams, "template.template must be a string")
		}
		tpl = string(s)
	}

	text := tpl
	if strings.Contains(tpl, JSONPlaceholder) {
		encoded, err := types.EncodeASCII(input)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidNodeParams, "template payload is not serialisable").WithCause(err)
		}
		text = strings.ReplaceAll(tpl, JSONPlaceholder, encoded)
	}

	return types.Object{
		"text":    types.String(text),
		"payload": input,
	}, nil
}
