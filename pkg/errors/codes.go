package errors

type Code string

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeForbidden             Code = "FORBIDDEN"
	CodeUnauthenticated       Code = "UNAUTHENTICATED"
	CodeInvalidState          Code = "INVALID_STATE"
	CodePeerUnreachable       Code = "PEER_UNREACHABLE"
	CodeAlreadyFriends        Code = "ALREADY_FRIENDS"
	CodeRequestAlreadyPending Code = "REQUEST_ALREADY_PENDING"
	CodeAlreadyExists         Code = "ALREADY_EXISTS"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeInternal              Code = "INTERNAL"
)
