package models

import "testing"

func TestNewFragment(t *testing.T) {
	f := NewFragment(RoleUser, "hello")
	if f.Role != RoleUser {
		t.Errorf("Role = %q, want %q", f.Role, RoleUser)
	}
	if len(f.Parts) != 1 {
		t.Fatalf("len(Parts) = %d, want 1", len(f.Parts))
	}
	if f.Parts[0].Text != "hello" {
		t.Errorf("Parts[0].Text = %q, want %q", f.Parts[0].Text, "hello")
	}
}

func TestFragmentText_MultiPart(t *testing.T) {
	f := Fragment{Role: RoleModel, Parts: []Part{{Text: "a"}, {Text: "b"}}}
	if got := f.Text(); got != "ab" {
		t.Errorf("Text() = %q, want %q", got, "ab")
	}
}

func TestSessionValid(t *testing.T) {
	tests := []struct {
		name string
		sess *Session
		want bool
	}{
		{"nil", nil, false},
		{
			"complete",
			&Session{Name: "Dracula", History: []Fragment{}, SystemContext: "ctx"},
			true,
		},
		{
			"missing name",
			&Session{History: []Fragment{}, SystemContext: "ctx"},
			false,
		},
		{
			"missing history",
			&Session{Name: "Dracula", SystemContext: "ctx"},
			false,
		},
		{
			"missing system context",
			&Session{Name: "Dracula", History: []Fragment{}},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
