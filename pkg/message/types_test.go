package message

import "testing"

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleHuman, true},
		{RoleAssistant, true},
		{"ai", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.want {
				t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestProfile_Clone(t *testing.T) {
	age := 72
	p := NewProfile("u1", &age, []string{"gardening"})
	age = 10

	if *p.Age != 72 {
		t.Fatalf("NewProfile kept caller pointer: age = %d", *p.Age)
	}

	c := p.Clone()
	c.Interests[0] = "chess"
	*c.Age = 80

	if p.Interests[0] != "gardening" {
		t.Errorf("clone shares interests: %v", p.Interests)
	}
	if *p.Age != 72 {
		t.Errorf("clone shares age: %d", *p.Age)
	}
}

func TestProfile_Has(t *testing.T) {
	var empty Profile
	if empty.HasAge() || empty.HasInterests() {
		t.Error("zero profile should have no known fields")
	}

	age := 0
	p := NewProfile("u1", &age, []string{"music"})
	if !p.HasAge() {
		t.Error("age 0 is a known value")
	}
	if !p.HasInterests() {
		t.Error("expected interests to be known")
	}
}
