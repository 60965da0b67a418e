package content

import "testing"

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"  padded  ", "padded"},
		{"<script>alert(1)</script>hi", "hi"},
		{"<b>bold</b>", "bold"},
		{"<img src=x onerror=alert(1)>", ""},
	}

	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidateChannelID(t *testing.T) {
	valid := []string{"gen", "bsit3-b4", "dm-u_guest", "sci101", "a.b"}
	for _, id := range valid {
		if err := ValidateChannelID(id); err != nil {
			t.Errorf("ValidateChannelID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "has space", "slash/", "<gen>", "ch#1"}
	for _, id := range invalid {
		if err := ValidateChannelID(id); err == nil {
			t.Errorf("ValidateChannelID(%q) = nil, want error", id)
		}
	}
}
