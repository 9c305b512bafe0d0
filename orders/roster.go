package orders

import (
	"strconv"
	"strings"
)

// Roster is the ordered list of people on the sheet. Order is display order.
// Names are unique. A sheet may start without a special holder, but once one
// is assigned roster edits keep exactly one.
type Roster struct {
	people []Person
}

// NewRoster builds a roster from names, trimming them and dropping blanks and
// repeats.
func NewRoster(names ...string) Roster {
	var r Roster
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || r.Contains(n) {
			continue
		}
		r.people = append(r.people, Person{Name: n})
	}
	return r
}

func (r Roster) Len() int { return len(r.people) }

// People returns a copy of the roster entries.
func (r Roster) People() []Person {
	out := make([]Person, len(r.people))
	copy(out, r.people)
	return out
}

// Names returns the names in display order.
func (r Roster) Names() []string {
	out := make([]string, len(r.people))
	for i, p := range r.people {
		out[i] = p.Name
	}
	return out
}

// Index returns the position of name, or -1.
func (r Roster) Index(name string) int {
	for i, p := range r.people {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (r Roster) Contains(name string) bool { return r.Index(name) >= 0 }

// Find returns the roster entry for name.
func (r Roster) Find(name string) (Person, bool) {
	if i := r.Index(name); i >= 0 {
		return r.people[i], true
	}
	return Person{}, false
}

// SpecialHolder returns the name of the capability holder, if any.
func (r Roster) SpecialHolder() (string, bool) {
	for _, p := range r.people {
		if p.Special {
			return p.Name, true
		}
	}
	return "", false
}

// Add appends people. Names are trimmed, blanks are skipped and repeats within
// names collapse. Nothing is added when any name already exists or when no
// name is left after trimming.
func (r *Roster) Add(names ...string) ([]string, error) {
	var added []string
	seen := make(map[string]bool)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		if r.Contains(n) {
			return nil, invalid("name", n, "already on the roster")
		}
		seen[n] = true
		added = append(added, n)
	}
	if len(added) == 0 {
		return nil, invalid("name", "", "must not be empty")
	}
	for _, n := range added {
		r.people = append(r.people, Person{Name: n})
	}
	return added, nil
}

// Delete removes the person at index. The special holder cannot be deleted
// while anyone else is on the roster; the capability has to move first.
func (r *Roster) Delete(index int) (Person, error) {
	if index < 0 || index >= len(r.people) {
		return Person{}, invalid("index", strconv.Itoa(index), "out of range")
	}
	removed := r.people[index]
	if removed.Special && len(r.people) > 1 {
		return Person{}, invalid("index", strconv.Itoa(index), "holds the special capability; give it to someone else first")
	}
	r.people = append(r.people[:index:index], r.people[index+1:]...)
	return removed, nil
}

// SetSpecialHolder gives the capability to name and takes it from everyone
// else. A roster that has a holder always keeps exactly one.
func (r *Roster) SetSpecialHolder(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name", "", "must not be empty")
	}
	if !r.Contains(name) {
		return invalid("name", name, "not on the roster")
	}
	for i := range r.people {
		r.people[i].Special = r.people[i].Name == name
	}
	return nil
}

// rename replaces from with to in place. When to is already present the
// entry for from is dropped instead, keeping names unique.
func (r *Roster) rename(from, to string) bool {
	i := r.Index(from)
	if i < 0 {
		return false
	}
	if j := r.Index(to); j >= 0 {
		if r.people[i].Special {
			r.people[j].Special = true
		}
		r.people = append(r.people[:i:i], r.people[i+1:]...)
		return true
	}
	r.people[i].Name = to
	return true
}

func (r *Roster) remove(name string) bool {
	i := r.Index(name)
	if i < 0 {
		return false
	}
	r.people = append(r.people[:i:i], r.people[i+1:]...)
	return true
}

func (r Roster) clone() Roster {
	return Roster{people: r.People()}
}
