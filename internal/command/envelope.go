// Package command validates inbound action requests.
//
// An action request is a decoded JSON object of the form
//
//	{"type": "user_request", "event": "action_requested",
//	 "body": {"action": "on", "obj_id": "Th1", "action_params": {}}}
//
// Validate checks it field by field in a fixed order and reports only the
// first failure, so the same bad request always yields the same error.
package command

import (
	"errors"
	"fmt"
)

// Supported literal values.
const (
	MessageTypeUserRequest = "user_request"
	EventActionRequested   = "action_requested"
)

// Field names as they appear in the request.
const (
	FieldType         = "type"
	FieldEvent        = "event"
	FieldBody         = "body"
	FieldAction       = "action"
	FieldObjID        = "obj_id"
	FieldActionParams = "action_params"
)

// ErrInvalidEnvelope is matched by every *ValidationError.
var ErrInvalidEnvelope = errors.New("command: invalid envelope")

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("command: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidEnvelope) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEnvelope
}

// Envelope is a structurally valid action request.
type Envelope struct {
	MessageType   string         `json:"type"`
	Event         string         `json:"event"`
	TargetThingID string         `json:"obj_id"`
	ActionName    string         `json:"action"`
	ActionParams  map[string]any `json:"action_params"`
}

// Validate checks raw in this order: type, event, body, action, obj_id,
// action_params. It returns a *ValidationError for the first failure.
func Validate(raw map[string]any) (*Envelope, error) {
	msgType, present := raw[FieldType]
	if !present || msgType == nil {
		return nil, &ValidationError{FieldType, "Invalid message format: missing 'type' value"}
	}
	if s, ok := msgType.(string); !ok || s != MessageTypeUserRequest {
		return nil, &ValidationError{FieldType, fmt.Sprintf(
			"Unsupported message type: %v. Only type='%s' is supported", msgType, MessageTypeUserRequest)}
	}

	if s, ok := raw[FieldEvent].(string); !ok || s != EventActionRequested {
		return nil, &ValidationError{FieldEvent, fmt.Sprintf(
			"Unsupported event specified: %v. Only event='%s' is supported", display(raw[FieldEvent]), EventActionRequested)}
	}

	body, ok := raw[FieldBody].(map[string]any)
	if !ok {
		return nil, &ValidationError{FieldBody, "Message body is invalid or absent."}
	}

	action, ok := body[FieldAction].(string)
	if !ok {
		return nil, &ValidationError{FieldAction, "Requested action is not specified in message body or is null."}
	}

	thingID, ok := body[FieldObjID].(string)
	if !ok {
		return nil, &ValidationError{FieldObjID, "obj_id (unique identifier of specific Thing) is not specified or is null."}
	}

	params, ok := body[FieldActionParams].(map[string]any)
	if !ok {
		return nil, &ValidationError{FieldActionParams, "A value of action_params is invalid or absent. " +
			"It must be an object that contains all parameters the thing needs to perform the action."}
	}

	return &Envelope{
		MessageType:   MessageTypeUserRequest,
		Event:         EventActionRequested,
		TargetThingID: thingID,
		ActionName:    action,
		ActionParams:  params,
	}, nil
}

func display(v any) any {
	if v == nil {
		return "null"
	}
	return v
}
