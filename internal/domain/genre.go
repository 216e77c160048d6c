package domain

import "strings"

// Genre is identified by its trimmed name; a blank name becomes "".
type Genre struct {
	name string
}

func NewGenre(name string) *Genre { return &Genre{name: strings.TrimSpace(name)} }

func (g *Genre) Name() string { return g.name }

func (g *Genre) IsNull() bool { return g.name == "" }

func (g *Genre) Equal(o *Genre) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.name == o.name
}

func (g *Genre) Compare(o *Genre) int {
	if c, ok := nilOrder(g, o); ok {
		return c
	}
	return strings.Compare(g.name, o.name)
}

func (g *Genre) String() string { return "<Genre " + g.name + ">" }

// GenreNames returns the names of gs in order.
func GenreNames(gs []*Genre) []string {
	out := make([]string, 0, len(gs))
	for _, g := range gs {
		out = append(out, g.name)
	}
	return out
}
