package proxyserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargetFromPath_HappyPath(t *testing.T) {
	target, err := TargetFromPath("/p/https://api.openai.com/v1/chat/completions", "foo=bar", nil)
	require.NoError(t, err)
	require.Equal(t, "api.openai.com", target.URL.Hostname())
	require.Equal(t, "foo=bar", target.URL.RawQuery)
}

func TestTargetFromPath_NormalizesSingleSlashScheme(t *testing.T) {
	target, err := TargetFromPath("/p/https:/api.openai.com/v1/models", "", nil)
	require.NoError(t, err)
	require.Equal(t, "api.openai.com", target.URL.Hostname())
}

func TestTargetFromPath_EmptyIsInvalid(t *testing.T) {
	_, err := TargetFromPath("/p/", "", nil)
	require.Error(t, err)
}

func TestTargetFromPath_RejectsNonHTTPScheme(t *testing.T) {
	_, err := TargetFromPath("/p/ftp://x", "", nil)
	require.Error(t, err)
}

func TestTargetFromPath_HostAllowlist(t *testing.T) {
	_, err := TargetFromPath("/p/https://evil.example/", "", []string{"api.openai.com"})
	require.Error(t, err)

	target, err := TargetFromPath("/p/https://api.openai.com/x", "", []string{"api.openai.com"})
	require.NoError(t, err)
	require.Equal(t, "api.openai.com", target.URL.Hostname())
}

func TestTargetFromPath_BareStarAllowsAll(t *testing.T) {
	target, err := TargetFromPath("/p/https://anything.example/x", "", []string{"*"})
	require.NoError(t, err)
	require.Equal(t, "anything.example", target.URL.Hostname())
}

func TestTargetFromPath_WildcardAllowlist(t *testing.T) {
	target, err := TargetFromPath("/p/https://sub.openai.com/x", "", []string{"*.openai.com"})
	require.NoError(t, err)
	require.Equal(t, "sub.openai.com", target.URL.Hostname())
}

func TestTargetFromPath_StripsFragment(t *testing.T) {
	target, err := TargetFromPath("/p/https://api.openai.com/x#frag", "", nil)
	require.NoError(t, err)
	require.Empty(t, target.URL.Fragment)
}
