package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveDotSegments(t *testing.T) {
	tests := map[string]string{
		"https://wikiteq.com/foo/./../bar": "https://wikiteq.com/bar",
		"https://wikiteq.com":              "https://wikiteq.com",
		"//wikiteq.com/a/b/..":             "//wikiteq.com/a/",
		"/a/b/c/./../../g":                 "/a/g",
		"mid/content=5/../6":               "mid/6",
		"./Page":                           "Page",
		"../Page":                          "Page",
		"/a/.":                             "/a/",
		".":                                "",
		"..":                               "",
		"Main_Page":                        "Main_Page",
	}
	for in, want := range tests {
		assert.Equal(t, want, RemoveDotSegments(in), in)
	}
}

func TestHost(t *testing.T) {
	tests := map[string]string{
		"https://wikiteq.com/x":        "wikiteq.com",
		"//wikiteq.com":                "wikiteq.com",
		"foo://user:pw@wikiteq.com:80": "wikiteq.com",
		"http://[::1]:8080/":           "[::1]",
		"localhost:8080/x":             "localhost",
		"http:///nohost":               "",
		"wikiteq.com":                  "",
		"mailto:someone@example.com":   "",
		"Main_Page":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Host(in), in)
		assert.Equal(t, want != "", HasHost(in), in)
	}
}

func TestURLUtils_Parse(t *testing.T) {
	u := NewURLUtils(nil)

	p := u.Parse("HTTPS://wikiteq.com/a?b#c")
	require.NotNil(t, p)
	assert.Equal(t, URLParts{Scheme: "https", Delimiter: "://", Host: "wikiteq.com", Path: "/a?b#c"}, *p)

	p = u.Parse("//wikiteq.com/x")
	require.NotNil(t, p)
	assert.Equal(t, URLParts{Scheme: "", Delimiter: "://", Host: "wikiteq.com", Path: "/x"}, *p)

	p = u.Parse("mailto:someone@example.com")
	require.NotNil(t, p)
	assert.Equal(t, URLParts{Scheme: "mailto", Delimiter: ":", Host: "someone@example.com"}, *p)

	p = u.Parse("http:foo")
	require.NotNil(t, p)
	assert.Equal(t, "/foo", p.Path)

	assert.Nil(t, u.Parse("foo://wikiteq.com"))
	assert.Nil(t, u.Parse("bar:wikiteq.com"))
	assert.Nil(t, u.Parse("wikiteq.com"))
	assert.Nil(t, u.Parse("http:///x"))
	assert.Nil(t, u.Parse("javascript:alert(1)"))
}

func TestURLUtils_Classify(t *testing.T) {
	u := NewURLUtils([]string{"https://", "mailto:"})

	assert.Equal(t, LinkExternal, u.Classify("https://wikiteq.com"))
	assert.Equal(t, LinkExternal, u.Classify("mailto:a@b.c"))
	assert.Equal(t, LinkForeign, u.Classify("ftp://wikiteq.com"))
	assert.Equal(t, LinkLocal, u.Classify("ftp:wikiteq.com"))
	assert.Equal(t, LinkLocal, u.Classify("Main_Page"))
	assert.Equal(t, "foreign", LinkForeign.String())
}
