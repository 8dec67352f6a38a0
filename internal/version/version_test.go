package version

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestStringContainsVersion(t *testing.T) {
	assert.Check(t, is.Contains(String(), Version))
	assert.Check(t, is.Contains(String(), GitCommit))
}
