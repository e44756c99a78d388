package identity

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "already normalised",
			code: "817994ccfe14",
			want: "817994ccfe14",
		},
		{
			name: "uppercase is lowered",
			code: "817994CCFE14",
			want: "817994ccfe14",
		},
		{
			name: "surrounding whitespace is trimmed",
			code: "  817994ccfe14\t",
			want: "817994ccfe14",
		},
		{
			name: "interior whitespace is stripped",
			code: "8179 94cc\tfe14",
			want: "817994ccfe14",
		},
		{
			name: "empty input",
			code: "",
			want: "",
		},
		{
			name: "whitespace only input",
			code: " \t\n",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.code); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}
