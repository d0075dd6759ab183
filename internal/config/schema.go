package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// SchemaError is a config value rejected by the schema.
type SchemaError struct {
	Environment string
	Message     string
	Pos         token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("config %s: %s:%d:%d: %s", e.Environment,
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("config %s: %s", e.Environment, e.Message)
}

func validate(cfg Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	view := struct {
		Name        string      `json:"name"`
		Environment Environment `json:"environment"`
		Runner      Runner      `json:"runner"`
	}{cfg.Name, cfg.Environment, cfg.Runner}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(view))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return schemaError(cfg.Name, err)
	}
	return nil
}

// schemaError keeps the first CUE error and its position.
func schemaError(env string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Environment: env, Message: err.Error()}
	}
	first := errs[0]
	se := &SchemaError{Environment: env, Message: first.Error()}
	if pos := errors.Positions(first); len(pos) > 0 {
		se.Pos = pos[0]
	}
	return se
}
