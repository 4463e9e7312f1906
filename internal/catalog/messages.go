package catalog

import (
	"slices"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

// SliceMessages is the messages module's slice key.
const SliceMessages = "messages"

// Action types handled by the messages module.
const (
	ActionAddMessage    = "ADD_MESSAGE"
	ActionClearMessages = "CLEAR_MESSAGES"
)

// Messages returns the message log feature module.
func Messages() engine.FeatureModule {
	return engine.FeatureModule{
		Slice:   SliceMessages,
		Reducer: messagesReducer,
	}
}

func messagesReducer(state any, action ir.Action) any {
	messages := stringList(state)

	switch action.Type {
	case ActionAddMessage:
		msg, ok := action.Payload.(string)
		if !ok || msg == "" {
			return messages
		}
		return append(slices.Clip(messages), msg)
	case ActionClearMessages:
		return []string{}
	}
	return messages
}
