package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidCommand wraps every parse or schema failure.
var ErrInvalidCommand = errors.New("invalid command")

// Command types accepted from clients.
const (
	CommandPublish  = "PUBLISH"
	CommandPurchase = "PURCHASE"
	CommandRestart  = "RESTART"
	CommandSetState = "SET_STATE"
	CommandView     = "VIEW"
)

const commandSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "additionalProperties": false,
  "properties": {
    "type": {"enum": ["PUBLISH", "PURCHASE", "RESTART", "SET_STATE", "VIEW"]},
    "id": {"type": "string", "maxLength": 64},
    "upgrade_id": {"type": "string", "minLength": 1, "maxLength": 32},
    "state": {"type": "string", "minLength": 1, "maxLength": 128}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "PURCHASE"}}},
      "then": {"required": ["upgrade_id"]}
    },
    {
      "if": {"properties": {"type": {"const": "SET_STATE"}}},
      "then": {"required": ["state"]}
    }
  ]
}`

// Command is one client request.
type Command struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	UpgradeID string `json:"upgrade_id,omitempty"`
	State     string `json:"state,omitempty"`
}

// CommandValidator checks raw client messages against the command schema.
type CommandValidator struct {
	schema *jsonschema.Schema
}

// NewCommandValidator compiles the embedded command schema.
func NewCommandValidator() (*CommandValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource("command.schema.json", strings.NewReader(commandSchema)); err != nil {
		return nil, err
	}
	s, err := c.Compile("command.schema.json")
	if err != nil {
		return nil, err
	}
	return &CommandValidator{schema: s}, nil
}

// Parse validates raw and decodes it.
func (v *CommandValidator) Parse(raw []byte) (Command, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return cmd, nil
}
