package build

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Version(t *testing.T) {
	origTag, origRevision := tag, revision
	t.Cleanup(func() { tag, revision = origTag, origRevision })

	tag = "v0.1.0"
	revision = "1a2b3c"
	assert.True(t, strings.HasPrefix(Version(), "v0.1.0 commit=1a2b3c"))

	tag = ""
	assert.Equal(t, "none", GetTag())
}
