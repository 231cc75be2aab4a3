package services

import "errors"

// ErrorKind groups engine errors for callers that map them to transport
// status codes.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindStateConflict     ErrorKind = "state_conflict"
	KindNotFound          ErrorKind = "not_found"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindResourceExhausted ErrorKind = "resource_exhausted"
	KindPermissionDenied  ErrorKind = "permission_denied"
)

// EngineError is a local, recoverable condition returned to the caller.
type EngineError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *EngineError) Error() string { return e.Message }

func newError(kind ErrorKind, code, message string) *EngineError {
	return &EngineError{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidCount             = newError(KindInvalidInput, "INVALID_COUNT", "question count must be at least 1")
	ErrInvalidDifficulty        = newError(KindInvalidInput, "INVALID_DIFFICULTY", "difficulty must be easy, medium, or hard")
	ErrInvalidModality          = newError(KindInvalidInput, "INVALID_MODALITY", "modality must be visual, auditory, reading, or kinesthetic")
	ErrInvalidAnswer            = newError(KindInvalidInput, "INVALID_ANSWER", "answer does not belong to the current question")
	ErrInvalidCapacity          = newError(KindInvalidInput, "INVALID_CAPACITY", "a battle needs room for at least 2 participants")
	ErrInvalidTopic             = newError(KindInvalidInput, "INVALID_TOPIC", "topic is required")
	ErrInvalidGeneration        = newError(KindInvalidInput, "INVALID_GENERATION", "content generator returned malformed questions")
	ErrEmptyContent             = newError(KindInvalidInput, "EMPTY_CONTENT", "content is required")
	ErrInvalidConfidence        = newError(KindInvalidInput, "INVALID_CONFIDENCE", "confidence must be between 0 and 1")
	ErrNothingAnswered          = newError(KindInvalidInput, "NOTHING_ANSWERED", "no questions have been answered yet")
	ErrAlreadyActive            = newError(KindStateConflict, "ALREADY_ACTIVE", "a study session is already active")
	ErrNoActiveSession          = newError(KindStateConflict, "NO_ACTIVE_SESSION", "no study session is active")
	ErrNoActiveQuiz             = newError(KindStateConflict, "NO_ACTIVE_QUIZ", "no quiz is in progress")
	ErrWrongState               = newError(KindStateConflict, "WRONG_STATE", "battle is not in the required state")
	ErrAlreadyJoined            = newError(KindStateConflict, "ALREADY_JOINED", "already a participant in this battle")
	ErrAttemptFinished          = newError(KindStateConflict, "ATTEMPT_FINISHED", "battle attempt already scored")
	ErrInsufficientParticipants = newError(KindStateConflict, "INSUFFICIENT_PARTICIPANTS", "a battle needs at least 2 participants to start")
	ErrSessionNotFound          = newError(KindNotFound, "NOT_FOUND", "study session not found")
	ErrQuizNotFound             = newError(KindNotFound, "NOT_FOUND", "quiz not found")
	ErrBattleNotFound           = newError(KindNotFound, "NOT_FOUND", "battle not found")
	ErrUnauthenticated          = newError(KindUnauthenticated, "UNAUTHENTICATED", "sign in required")
	ErrUnauthorized             = newError(KindUnauthorized, "UNAUTHORIZED", "only the battle host can do that")
	ErrNotParticipant           = newError(KindUnauthorized, "NOT_PARTICIPANT", "not a participant in this battle")
	ErrBattleFull               = newError(KindResourceExhausted, "BATTLE_FULL", "battle is full")
	ErrPermissionDenied         = newError(KindPermissionDenied, "PERMISSION_DENIED", "affect sensor permission denied")
)

// KindOf returns the kind of the first EngineError in err's chain, or ""
// for errors raised by collaborators.
func KindOf(err error) ErrorKind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
