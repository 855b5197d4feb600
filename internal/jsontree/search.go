package jsontree

// Clause is a set of field conditions combined with AND semantics: every
// named field must be present on the object under test and compare equal.
type Clause map[string]Value

// Condition is an ordered list of clauses combined with OR semantics: an
// object matches when any clause is satisfied.
type Condition []Clause

// Where builds the common single-field condition.
func Where(key string, v Value) Condition {
	return Condition{Clause{key: v}}
}

// Options controls a search.
type Options struct {
	// CaseInsensitive folds string-to-string comparisons in clauses.
	CaseInsensitive bool
	// RootKeys, when non-empty, restricts the search to the named
	// top-level members of an object tree, each searched independently
	// in the given order.
	RootKeys []string
}

// Find returns the first object in depth-first document order that
// satisfies cond. Non-object, non-array nodes are not matchable and are
// skipped; malformed trees never cause an error.
func Find(tree Value, cond Condition, opts Options) (Value, bool) {
	var found Value
	ok := walk(tree, cond, opts, func(v Value) bool {
		found = v
		return true
	})
	return found, ok
}

// FindAll returns every matching object in depth-first document order.
// The result is nil when nothing matches.
func FindAll(tree Value, cond Condition, opts Options) []Value {
	var found []Value
	walk(tree, cond, opts, func(v Value) bool {
		found = append(found, v)
		return false
	})
	return found
}

// walk drives the traversal, invoking visit for each match. visit returns
// true to stop the whole search.
func walk(tree Value, cond Condition, opts Options, visit func(Value) bool) bool {
	if len(opts.RootKeys) > 0 && tree.Kind() == KindObject {
		for _, key := range opts.RootKeys {
			if sub, ok := tree.Get(key); ok {
				if search(sub, cond, opts.CaseInsensitive, visit) {
					return true
				}
			}
		}
		return false
	}
	return search(tree, cond, opts.CaseInsensitive, visit)
}

func search(node Value, cond Condition, caseInsensitive bool, visit func(Value) bool) bool {
	switch node.Kind() {
	case KindObject:
		// The node itself is tested before any of its children.
		if matches(node, cond, caseInsensitive) {
			if visit(node) {
				return true
			}
		}
		for _, m := range node.Members() {
			switch m.Value.Kind() {
			case KindObject, KindArray:
				if search(m.Value, cond, caseInsensitive, visit) {
					return true
				}
			}
		}
	case KindArray:
		for _, el := range node.Elems() {
			switch el.Kind() {
			case KindObject, KindArray:
				if search(el, cond, caseInsensitive, visit) {
					return true
				}
			}
		}
	}
	return false
}

func matches(node Value, cond Condition, caseInsensitive bool) bool {
	for _, clause := range cond {
		if clauseMatches(node, clause, caseInsensitive) {
			return true
		}
	}
	return false
}

// clauseMatches tests an object node against one clause. An empty clause
// is vacuously true, so Condition{Clause{}} matches every object node.
func clauseMatches(node Value, clause Clause, caseInsensitive bool) bool {
	for key, want := range clause {
		got, ok := node.Get(key)
		if !ok {
			return false
		}
		if !Equal(got, want, caseInsensitive) {
			return false
		}
	}
	return true
}
