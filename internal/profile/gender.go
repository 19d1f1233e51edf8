package profile

import "strings"

// Gender is an optional declared gender. The zero value is None.
type Gender struct {
	value string
	set   bool
}

// None is the absent gender.
var None = Gender{}

// Some returns a declared gender. Blank input normalizes to None.
func Some(g string) Gender {
	g = strings.ToLower(strings.TrimSpace(g))
	if g == "" {
		return None
	}
	return Gender{value: g, set: true}
}

// GenderFrom reads the nullable column representation.
func GenderFrom(p *string) Gender {
	if p == nil {
		return None
	}
	return Some(*p)
}

// Get returns the gender and whether one is declared.
func (g Gender) Get() (string, bool) { return g.value, g.set }

func (g Gender) IsSet() bool { return g.set }

// Ptr is the nullable column representation.
func (g Gender) Ptr() *string {
	if !g.set {
		return nil
	}
	v := g.value
	return &v
}

func (g Gender) String() string {
	if !g.set {
		return "none"
	}
	return g.value
}
