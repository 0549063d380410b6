package schema

import (
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"User":          "user",
		"user":          "user",
		"UserProfile":   "userProfile",
		"user_profile":  "userProfile",
		"user-profile":  "userProfile",
		"USER_PROFILE":  "userProfile",
		"HTTPServer":    "httpServer",
		"userID":        "userId",
		"OAuth2Token":   "oAuth2Token",
		"blog posts":    "blogPosts",
		"$connect":      "connect",
		"__typename":    "typename",
		"":              "",
		"x_B_C":         "xbc",
		"v2Beta":        "v2Beta",
		"  spaced  out": "spacedOut",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

// rawName is a generated model or field name drawn from the runes that matter
// to word splitting.
type rawName string

func (rawName) Generate(r *rand.Rand, size int) reflect.Value {
	alphabet := []rune("aAbBkKzZ019_- $xXéÉßΣσςǅϒİ中")
	rs := make([]rune, r.Intn(size+1))
	for i := range rs {
		rs[i] = alphabet[r.Intn(len(alphabet))]
	}
	return reflect.ValueOf(rawName(rs))
}

func TestNormalizeIdempotent(t *testing.T) {
	stable := func(s string) bool {
		once := Normalize(s)
		return Normalize(once) == once
	}
	require.NoError(t, quick.Check(func(n rawName) bool { return stable(string(n)) }, &quick.Config{MaxCount: 20000}))
	require.NoError(t, quick.Check(stable, &quick.Config{MaxCount: 5000}))

	for _, in := range []string{"has_a_B2", "aBb_aA9", "Ba_aZ9", "x_B_Cd", "getHTTPResponseCode", "Ünïcode_Name"} {
		once := Normalize(in)
		require.Equal(t, once, Normalize(once), "input %q", in)
	}
	assert.Equal(t, "hasAb2", Normalize("has_a_B2"))
}

func TestKnownModels(t *testing.T) {
	keys := []string{"user", "$connect", "_engine", "Post", "constructor", "post", "blog_post", ""}
	require.Equal(t, []string{"user", "post", "blogPost"}, KnownModels(keys))
}
