package ir

import (
	"fmt"
	"reflect"
	"slices"
)

// Built-in action types emitted by the engine itself.
// Consumers may observe them but should not depend on exact reduction behavior.
const (
	ActionInitStore         = "INIT_STORE"
	ActionLoadModule        = "LOAD_MODULE"
	ActionUnloadModule      = "UNLOAD_MODULE"
	ActionApplyMiddlewares  = "APPLY_MIDDLEWARES"
	ActionRegisterEffects   = "REGISTER_EFFECTS"
	ActionUnregisterEffects = "UNREGISTER_EFFECTS"
)

// builtinTypes lists every engine-owned action type.
var builtinTypes = []string{
	ActionInitStore,
	ActionLoadModule,
	ActionUnloadModule,
	ActionApplyMiddlewares,
	ActionRegisterEffects,
	ActionUnregisterEffects,
}

// IsBuiltin reports whether actionType is one of the engine-owned action types.
func IsBuiltin(actionType string) bool {
	return slices.Contains(builtinTypes, actionType)
}

// Action is an immutable tagged value describing an intended state change.
//
// Type is the discriminator and is never empty on a dispatched action.
// Payload is optional and opaque to the engine.
type Action struct {
	Type    string `json:"type" yaml:"type"`
	Payload any    `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// NewAction creates an Action with the given type and payload.
func NewAction(actionType string, payload any) Action {
	return Action{Type: actionType, Payload: payload}
}

// Is reports whether the action's type is one of types.
func (a Action) Is(types ...string) bool {
	return slices.Contains(types, a.Type)
}

// Equal reports structural equality of two actions.
func (a Action) Equal(other Action) bool {
	return a.Type == other.Type && reflect.DeepEqual(a.Payload, other.Payload)
}

// String renders the action for logs.
func (a Action) String() string {
	if a.Payload == nil {
		return a.Type
	}
	return fmt.Sprintf("%s(%v)", a.Type, a.Payload)
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks that the action can be dispatched.
func (a Action) Validate() error {
	if a.Type == "" {
		return ValidationError{Field: "type", Message: "action type must not be empty"}
	}
	return nil
}
