package errors

import "fmt"

type NotOpenError struct {
	Operation string
	State     string
}

func (e *NotOpenError) Error() string {
	return fmt.Sprintf("Cannot %s: connection is not open (state=%s)", e.Operation, e.State)
}

type AlreadyOpenedError struct {
	State string
}

func (e *AlreadyOpenedError) Error() string {
	return fmt.Sprintf("Connection can only be opened once (state=%s)", e.State)
}

type MissingFieldError struct {
	MessageName string
	FieldName   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing field %s in message type %s", e.FieldName, e.MessageName)
}

type MalformedMessage struct {
	MessageName string
	Reason      error
}

func (e *MalformedMessage) Error() string {
	return fmt.Sprintf("Malformed message (type=%s): %v", e.MessageName, e.Reason)
}

func (e *MalformedMessage) Unwrap() error {
	return e.Reason
}

type InvalidEnumValue struct {
	EnumName    string
	StringValue string
}

func (e *InvalidEnumValue) Error() string {
	return fmt.Sprintf("Invalid enum value=%q (enum: %s)", e.StringValue, e.EnumName)
}
