package poll

import "errors"

// ErrorKind groups rejections by how a client should treat them
type ErrorKind string

const (
	KindConflict ErrorKind = "conflict"
	KindNotFound ErrorKind = "not_found"
	KindRejected ErrorKind = "rejected"
)

// ErrorCode identifies a specific rejection
type ErrorCode string

const (
	CodeRoomExists               ErrorCode = "ROOM_EXISTS"
	CodeNameTaken                ErrorCode = "NAME_TAKEN"
	CodeAlreadyInRoom            ErrorCode = "ALREADY_IN_ROOM"
	CodeRoomNotFound             ErrorCode = "ROOM_NOT_FOUND"
	CodeParticipantNotRecognized ErrorCode = "PARTICIPANT_NOT_RECOGNIZED"
	CodeParticipantNotFound      ErrorCode = "PARTICIPANT_NOT_FOUND"
	CodeDeadlineExpired          ErrorCode = "DEADLINE_EXPIRED"
	CodeAlreadyVoted             ErrorCode = "ALREADY_VOTED"
	CodeInvalidOption            ErrorCode = "INVALID_OPTION"
	CodeInvalidRequest           ErrorCode = "INVALID_REQUEST"
)

// Error is an expected, recoverable rejection of a room operation.
// Message is safe to show to the requesting client
type Error struct {
	Kind    ErrorKind
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so wrapped or re-worded errors still compare equal
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrRoomExists    = &Error{KindConflict, CodeRoomExists, "Room with this code already exists."}
	ErrNameTaken     = &Error{KindConflict, CodeNameTaken, "This username is already taken in the room."}
	ErrAlreadyInRoom = &Error{KindConflict, CodeAlreadyInRoom, "You are already in a room."}

	ErrRoomNotFound             = &Error{KindNotFound, CodeRoomNotFound, "Room not found."}
	ErrParticipantNotRecognized = &Error{KindNotFound, CodeParticipantNotRecognized, "You are not recognized in this room."}
	ErrParticipantNotFound      = &Error{KindNotFound, CodeParticipantNotFound, "Connection is not in any room."}

	ErrDeadlineExpired = &Error{KindRejected, CodeDeadlineExpired, "Your personal 60-second voting time has expired."}
	ErrAlreadyVoted    = &Error{KindRejected, CodeAlreadyVoted, "You have already voted."}
	ErrInvalidOption   = &Error{KindRejected, CodeInvalidOption, "Invalid voting option."}
	ErrInvalidRequest  = &Error{KindRejected, CodeInvalidRequest, "Invalid request."}
)

// invalidRequest returns an ErrInvalidRequest carrying a specific message
func invalidRequest(msg string) *Error {
	return &Error{Kind: KindRejected, Code: CodeInvalidRequest, Message: msg}
}

// KindOf returns the kind of a room error, or "" for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
