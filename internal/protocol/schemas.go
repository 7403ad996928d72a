package protocol

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaFiles maps inbound message types to their schema file. Outbound
// messages are covered by the schema test, not checked at runtime.
var schemaFiles = map[string]string{
	TypeHello:        "hello.schema.json",
	TypeAct:          "act.schema.json",
	TypeQueryConn:    "query_conn.schema.json",
	TypeQueryNetwork: "query_network.schema.json",
	TypeMove:         "move.schema.json",
}

// Validator checks inbound messages against their JSON Schema before
// they are decoded into typed structs.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

// NewValidator compiles the inbound message schemas from dir
// (configs/schemas in a standard layout).
func NewValidator(dir string) (*Validator, error) {
	v := &Validator{byType: make(map[string]*jsonschema.Schema, len(schemaFiles))}
	for msgType, file := range schemaFiles {
		s, err := jsonschema.Compile(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", file, err)
		}
		v.byType[msgType] = s
	}
	return v, nil
}

// Check validates raw against the schema for msgType. Types without a
// registered schema pass; the type switch downstream rejects them.
func (v *Validator) Check(msgType string, raw []byte) error {
	s, ok := v.byType[msgType]
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", msgType, err)
	}
	return nil
}
