package errclass_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vem-project/vem/pkg/errclass"
)

func TestError_Error(t *testing.T) {
	err := errclass.ErrNotFound.WithMessage("environment 'work' not found")
	assert.Equal(t, "E_NOT_FOUND: environment 'work' not found", err.Error())
	assert.Equal(t, "E_NOT_FOUND", errclass.ErrNotFound.Error())
}

func TestError_Is(t *testing.T) {
	err := errclass.ErrActiveEnvironment.WithMessagef("cannot remove %s", "work")
	require.True(t, errors.Is(err, errclass.ErrActiveEnvironment))
	require.False(t, errors.Is(err, errclass.ErrNotFound))
}

func TestError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", errclass.ErrCodec.WithMessage("bad toml"))
	assert.ErrorIs(t, err, errclass.ErrCodec)
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := &fs.PathError{Op: "mkdir", Path: "/x", Err: fs.ErrPermission}
	err := errclass.Storage(cause, "cannot create environment '%s'", "work")

	assert.ErrorIs(t, err, errclass.ErrStorage)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, "cannot create environment 'work'", err.Message)
	assert.Contains(t, err.Detail(), "permission denied")
	assert.NotContains(t, err.Message, "/x")
}

func TestError_DetailEmptyWithoutCause(t *testing.T) {
	assert.Empty(t, errclass.ErrNoCurrent.WithMessage("none").Detail())
}

func TestClassify(t *testing.T) {
	wrapped := fmt.Errorf("ctx: %w", errclass.ErrAlreadyExists.WithMessage("dup"))
	e := errclass.Classify(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, "E_ALREADY_EXISTS", e.Code)

	assert.Nil(t, errclass.Classify(errors.New("plain")))
	assert.Nil(t, errclass.Classify(nil))
}

func TestError_AllClassesDistinct(t *testing.T) {
	all := []*errclass.Error{
		errclass.ErrNameInvalid,
		errclass.ErrNotFound,
		errclass.ErrAlreadyExists,
		errclass.ErrActiveEnvironment,
		errclass.ErrNoCurrent,
		errclass.ErrStorage,
		errclass.ErrCodec,
		errclass.ErrConfigInvalid,
		errclass.ErrAuditChainBroken,
		errclass.ErrPathEscape,
	}
	seen := make(map[string]bool)
	for _, e := range all {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
}
