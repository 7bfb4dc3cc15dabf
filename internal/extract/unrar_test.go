package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dieseltech/stacks/internal/common"
)

func TestExtractReportsMissingBinary(t *testing.T) {
	u := &UnrarExtractor{binary: "unrar-binary-that-does-not-exist"}

	assert.False(t, u.Available())

	_, err := u.Extract(context.Background(), "archive.rar", t.TempDir())
	assert.ErrorIs(t, err, common.ErrExtractorMissing)
}
