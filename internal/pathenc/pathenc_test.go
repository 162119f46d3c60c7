package pathenc

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/Users/alice/code/app", "-Users-alice-code-app"},
		{"", ""},
		{"/a", "-a"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Encode(c.in))
	}
}

func TestCandidatesIncludesNaiveDecode(t *testing.T) {
	got := Candidates("-Users-alice-my-app")
	require.NotEmpty(t, got)
	assert.Contains(t, got, "/Users/alice/my/app")
	assert.Contains(t, got, "/Users/alice/my-app")
}

func TestAmbiguousDecode(t *testing.T) {
	assert.True(t, AmbiguousDecode("-Users-alice-code-app"))
	assert.False(t, AmbiguousDecode("-app"))
}

func TestResolveWithoutExistingCandidateUsesNaiveDecode(t *testing.T) {
	assert.Equal(t, "/Users/alice/app", Resolve("-Users-alice-app"))
}

func TestResolveAmbiguousPrefersExistingCandidate(t *testing.T) {
	dir := t.TempDir()
	nested := dir + "/my/app"
	require.NoError(t, os.MkdirAll(nested, 0o755))

	encoded := Encode(nested)
	got := Resolve(encoded)
	assert.Equal(t, nested, got)
}
