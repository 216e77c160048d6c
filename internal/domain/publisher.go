package domain

import "strings"

// Publisher is identified by its trimmed name. A blank name is kept as the
// null name "" rather than rejected.
type Publisher struct {
	name string
}

func NewPublisher(name string) *Publisher {
	p := &Publisher{}
	p.SetName(name)
	return p
}

func (p *Publisher) Name() string { return p.name }

func (p *Publisher) SetName(name string) { p.name = strings.TrimSpace(name) }

// IsNull reports whether the publisher has no name.
func (p *Publisher) IsNull() bool { return p.name == "" }

func (p *Publisher) Equal(o *Publisher) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.name == o.name
}

func (p *Publisher) Compare(o *Publisher) int {
	if c, ok := nilOrder(p, o); ok {
		return c
	}
	return strings.Compare(p.name, o.name)
}

func (p *Publisher) String() string { return "<Publisher " + p.name + ">" }
