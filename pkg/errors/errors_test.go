package errors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/agentstation/kbmirror/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "document",
			ID:       "doc-1",
		}
		assert.Equal(t, "document doc-1 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("directory", "/tmp/none")
		wrapped := fmt.Errorf("upload: %w", base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("base_url", "", "cannot be empty")
		assert.Equal(t, "validation failed for field base_url: cannot be empty", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid configuration"}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
	})
}

func TestAPIError(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		err := pkgerrors.NewAPIError("document/list", http.StatusBadGateway, "bad gateway")
		assert.Contains(t, err.Error(), "status 502")
		assert.True(t, err.Transport())
		assert.True(t, pkgerrors.IsTransport(err))
		assert.False(t, pkgerrors.IsApplication(err))
		assert.True(t, errors.Is(err, pkgerrors.ErrRemoteUnavailable))
	})

	t.Run("application failure", func(t *testing.T) {
		err := pkgerrors.NewApplicationError("document/upload", 102, "file type not supported")
		assert.Equal(t, "document/upload rejected (code 102): file type not supported", err.Error())
		assert.False(t, err.Transport())
		assert.True(t, pkgerrors.IsApplication(err))
		assert.False(t, pkgerrors.IsFatal(err))
	})

	t.Run("rate limited", func(t *testing.T) {
		err := pkgerrors.NewAPIError("document/get", http.StatusTooManyRequests, "slow down")
		assert.True(t, pkgerrors.IsRateLimited(err))
	})

	t.Run("wrapped network error", func(t *testing.T) {
		base := errors.New("connection refused")
		err := pkgerrors.WrapAPI("document/list", 0, base)
		require.Error(t, err)
		assert.True(t, errors.Is(err, base))
		assert.True(t, pkgerrors.IsTransport(err))
		assert.Equal(t, "document/list failed: connection refused", err.Error())
	})
}

func TestAuthenticationError(t *testing.T) {
	err := pkgerrors.NewAuthenticationError("document/list", "token expired", nil)
	assert.Equal(t, "authentication failed at document/list: token expired", err.Error())
	assert.True(t, pkgerrors.IsFatal(err))
	assert.True(t, pkgerrors.IsFatal(fmt.Errorf("sync: %w", err)))
	assert.False(t, pkgerrors.IsFatal(pkgerrors.NewAPIError("x", 500, "boom")))
}

func TestSyncError(t *testing.T) {
	base := pkgerrors.NewAuthenticationError("", "expired", nil)
	err := pkgerrors.NewSyncError("kb-1", "list", base)
	assert.Contains(t, err.Error(), "kb-1")
	assert.Contains(t, err.Error(), "during list")
	assert.True(t, pkgerrors.IsFatal(err))
}

func TestIOError(t *testing.T) {
	base := errors.New("disk full")
	err := pkgerrors.WrapIO("write", "/tmp/x", base)
	require.Error(t, err)
	assert.Equal(t, "IO error during write of /tmp/x: disk full", err.Error())
	assert.True(t, errors.Is(err, base))
	assert.Nil(t, pkgerrors.WrapIO("write", "/tmp/x", nil))
}

func TestResourceError(t *testing.T) {
	err := pkgerrors.WrapResource("open", "mirror", "documents.db", errors.New("locked"))
	assert.Equal(t, "failed to open mirror documents.db: locked", err.Error())

	err = pkgerrors.WrapResource("query", "mirror", "", errors.New("bad sql"))
	assert.Equal(t, "failed to query mirror: bad sql", err.Error())
	assert.Nil(t, pkgerrors.WrapResource("query", "mirror", "", nil))
}

func TestParseError(t *testing.T) {
	err := pkgerrors.WrapParse("json", "response", errors.New("unexpected EOF"))
	assert.Equal(t, "parse error in json response: unexpected EOF", err.Error())

	err = pkgerrors.NewParseError("pdf", "", "no pages", nil)
	assert.Equal(t, "pdf parse error: no pages", err.Error())
}

func TestTimeoutAndCancel(t *testing.T) {
	err := fmt.Errorf("download: %w", pkgerrors.ErrTimeout)
	assert.True(t, pkgerrors.IsTimeout(err))
	assert.False(t, pkgerrors.IsCanceled(err))
	assert.True(t, pkgerrors.IsCanceled(pkgerrors.Join(pkgerrors.ErrCanceled, errors.New("context canceled"))))
}

func TestConfigError(t *testing.T) {
	base := errors.New("missing")
	err := pkgerrors.NewConfigError("ragflow", "auth token is required", base)
	assert.Equal(t, "configuration error in ragflow: auth token is required", err.Error())
	assert.True(t, errors.Is(err, base))
}
