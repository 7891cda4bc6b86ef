package utils

import "testing"

func TestDetermineLocale(t *testing.T) {
	supported := []string{"en", "zh"}
	cases := []struct {
		name   string
		query  string
		accept string
		def    string
		want   string
	}{
		{"query beats header", "zh-CN", "en-US,en;q=0.9", "en", "zh"},
		{"unsupported query falls through", "fr", "zh-TW", "en", "zh"},
		{"header order", "", "en-GB,zh;q=0.8", "zh", "en"},
		{"higher q wins regardless of position", "", "en;q=0.5,zh-Hans;q=0.9", "en", "zh"},
		{"q=0 is refused", "", "zh;q=0,fr", "en", "en"},
		{"no match uses default", "", "fr-FR,es;q=0.9", "zh", "zh"},
		{"garbage header", "", ";;;", "en", "en"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetermineLocale(tc.query, tc.accept, supported, tc.def); got != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDetermineLocaleWithoutUsableDefault(t *testing.T) {
	if got := DetermineLocale("!!", "", []string{"zh", "en"}, "xx-invalid-"); got != "zh" {
		t.Fatalf("want first supported, got %s", got)
	}
	if got := DetermineLocale("", "", nil, "zh"); got != "en" {
		t.Fatalf("want en with no supported locales, got %s", got)
	}
}
