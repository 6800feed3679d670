package domain

// Rule maps the values it matches to a State.
type Rule interface {
	Matches(v Value) bool
	State() *State
}

type exactRule struct {
	want  Value
	state *State
}

// Exact matches values equal to want, kind included.
func Exact(want Value, state *State) Rule {
	return exactRule{want: want, state: state}
}

// Bool matches boolean values equal to want.
func Bool(want bool, state *State) Rule {
	return exactRule{want: Boolean(want), state: state}
}

func (r exactRule) Matches(v Value) bool { return v == r.want }
func (r exactRule) State() *State        { return r.state }

type rangeRule struct {
	from, to int64
	state    *State
}

// Range matches integer values in [from, to].
func Range(from, to int64, state *State) Rule {
	if from > to {
		from, to = to, from
	}
	return rangeRule{from: from, to: to, state: state}
}

func (r rangeRule) Matches(v Value) bool {
	n, ok := v.Int()
	return ok && n >= r.from && n <= r.to
}

func (r rangeRule) State() *State { return r.state }

type defaultRule struct {
	state *State
}

// Default matches every value. Place it last.
func Default(state *State) Rule {
	return defaultRule{state: state}
}

func (r defaultRule) Matches(Value) bool { return true }
func (r defaultRule) State() *State      { return r.state }

// Table is an ordered list of rules. The first match wins.
type Table struct {
	rules []Rule
}

func (t *Table) Append(r Rule) {
	t.rules = append(t.rules, r)
}

func (t *Table) Len() int {
	return len(t.rules)
}

// Compute returns the state of the first rule matching v, or Undefined.
func (t *Table) Compute(v Value) *State {
	for _, r := range t.rules {
		if r.Matches(v) {
			if s := r.State(); s != nil {
				return s
			}
		}
	}
	return Undefined
}
