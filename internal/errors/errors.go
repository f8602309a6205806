package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	KindNotInitialized        Kind = "NOT_INITIALIZED"
	KindAlreadyInitialized    Kind = "ALREADY_INITIALIZED"
	KindFileNotFound          Kind = "FILE_NOT_FOUND"
	KindObjectNotFound        Kind = "OBJECT_NOT_FOUND"
	KindNoSuchCommit          Kind = "NO_SUCH_COMMIT"
	KindNoSuchBranch          Kind = "NO_SUCH_BRANCH"
	KindCorruptObject         Kind = "CORRUPT_OBJECT"
	KindNothingStaged         Kind = "NOTHING_STAGED"
	KindNothingToRemove       Kind = "NOTHING_TO_REMOVE"
	KindEmptyMessage          Kind = "EMPTY_MESSAGE"
	KindDirtyStagingArea      Kind = "DIRTY_STAGING_AREA"
	KindSelfMerge             Kind = "SELF_MERGE"
	KindSameBranch            Kind = "SAME_BRANCH"
	KindCannotRemoveCurrent   Kind = "CANNOT_REMOVE_CURRENT"
	KindBranchExists          Kind = "BRANCH_EXISTS"
	KindFileNotInCommit       Kind = "FILE_NOT_IN_COMMIT"
	KindUntrackedFileConflict Kind = "UNTRACKED_FILE_CONFLICT"
	KindInvalidArgument       Kind = "INVALID_ARGUMENT"
	KindConfig                Kind = "CONFIG"
)

// Error is the single error type surfaced by the repository engine. Two
// errors are considered equal by errors.Is when their kinds match, so the
// sentinels below can be used to test any wrapped engine error.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if stderrors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Sentinels for errors.Is checks.
var (
	ErrNotInitialized        = New(KindNotInitialized, "not in an initialized sprig directory")
	ErrAlreadyInitialized    = New(KindAlreadyInitialized, "repository already initialized")
	ErrFileNotFound          = New(KindFileNotFound, "file does not exist")
	ErrObjectNotFound        = New(KindObjectNotFound, "object not found")
	ErrNoSuchCommit          = New(KindNoSuchCommit, "no commit with that id exists")
	ErrNoSuchBranch          = New(KindNoSuchBranch, "no such branch exists")
	ErrCorruptObject         = New(KindCorruptObject, "corrupt object")
	ErrNothingStaged         = New(KindNothingStaged, "no changes added to the commit")
	ErrNothingToRemove       = New(KindNothingToRemove, "no reason to remove the file")
	ErrEmptyMessage          = New(KindEmptyMessage, "please enter a commit message")
	ErrDirtyStagingArea      = New(KindDirtyStagingArea, "you have uncommitted changes")
	ErrSelfMerge             = New(KindSelfMerge, "cannot merge a branch with itself")
	ErrSameBranch            = New(KindSameBranch, "no need to checkout the current branch")
	ErrCannotRemoveCurrent   = New(KindCannotRemoveCurrent, "cannot remove the current branch")
	ErrBranchExists          = New(KindBranchExists, "a branch with that name already exists")
	ErrFileNotInCommit       = New(KindFileNotInCommit, "file does not exist in that commit")
	ErrUntrackedFileConflict = New(KindUntrackedFileConflict, "there is an untracked file in the way")
	ErrInvalidArgument       = New(KindInvalidArgument, "invalid argument")
	ErrConfig                = New(KindConfig, "invalid configuration")
)
