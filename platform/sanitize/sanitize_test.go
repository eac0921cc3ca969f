package sanitize

import "testing"

func TestHost(t *testing.T) {
	cases := map[string]string{
		"https://www.HomeFinder.com/listing/42?x=1": "homefinder.com",
		"homefinder.com":                            "homefinder.com",
		"http://agents.realty.io:8443/signup":       "agents.realty.io",
		"  ":                                        "",
		"WWW.Example.org.":                          "example.org",
	}
	for in, want := range cases {
		if got := Host(in); got != want {
			t.Fatalf("Host(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestTextStripsMarkup(t *testing.T) {
	got := Text("  <b>Looking</b>   for a &lt;script&gt;3-bed\n home ")
	if got != "Looking for a 3-bed home" {
		t.Fatalf("unexpected text %q", got)
	}
}
