package toolexecutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
)

// ToolInfo is the listing form of a tool
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Registry is the static catalog of tools. It is built once and never
// mutated, so it needs no locking.
type Registry struct {
	tools   []Tool
	byName  map[string]Tool
	schemas map[string]*gojsonschema.Schema
	infos   []ToolInfo
}

// NewRegistry registers tools in the given order
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]Tool, len(tools)),
		schemas: make(map[string]*gojsonschema.Schema, len(tools)),
	}

	for _, tool := range tools {
		def := tool.Definition()
		if err := validateToolDefinition(def); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
		if def.Name != tool.Name() {
			return nil, fmt.Errorf("%w: definition name %q differs from tool name %q", ErrInvalidDefinition, def.Name, tool.Name())
		}
		if _, exists := r.byName[def.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
		}

		schemaMap := generateSchemaMap(def)
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for %s: %w", def.Name, err)
		}

		r.tools = append(r.tools, tool)
		r.byName[def.Name] = tool
		r.schemas[def.Name] = schema
		r.infos = append(r.infos, ToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schemaMap,
		})

		log.Info().Str("tool", def.Name).Msg("Tool registered")
	}

	return r, nil
}

// List returns every tool in registration order
func (r *Registry) List() []ToolInfo {
	return append([]ToolInfo(nil), r.infos...)
}

// Names returns the registered tool names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	return names
}

// Resolve returns the tool registered under name
func (r *Registry) Resolve(name string) (Tool, error) {
	tool, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// CheckArguments validates args against the tool's input schema
func (r *Registry) CheckArguments(name string, args map[string]interface{}) error {
	schema, ok := r.schemas[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(msgs, "; "))
	}

	return nil
}

// Call resolves name, checks args against its schema and invokes the tool
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (sandbox.Result, error) {
	tool, err := r.Resolve(name)
	if err != nil {
		return sandbox.Result{}, err
	}

	if err := r.CheckArguments(name, args); err != nil {
		log.Debug().Str("tool", name).Err(err).Msg("Argument validation failed")
		return sandbox.Result{}, err
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	return tool.Invoke(ctx, args)
}

var validTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// validateToolDefinition validates a tool definition
func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty for %s", def.Name)
	}

	seen := make(map[string]bool, len(def.Parameters))
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if seen[param.Name] {
			return fmt.Errorf("duplicate parameter %s", param.Name)
		}
		seen[param.Name] = true

		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %q for %s", param.Type, param.Name)
		}
		if param.Items != "" && (param.Type != "array" || !validTypes[param.Items]) {
			return fmt.Errorf("invalid item type %q for %s", param.Items, param.Name)
		}
	}

	return nil
}

// generateSchemaMap builds the JSON Schema of a tool's arguments
func generateSchemaMap(def ToolDefinition) map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Items != "" {
			paramSchema["items"] = map[string]interface{}{"type": param.Items}
		}
		if param.Minimum != nil {
			paramSchema["minimum"] = *param.Minimum
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return schemaMap
}
