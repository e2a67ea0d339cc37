package provenance

import "maps"

// Lineage maps the name a file had at some revision to the name it is known
// by today. A Lineage is frozen: it is never mutated once attached to a
// revision, so any number of revisions may share one instance.
type Lineage struct {
	names map[string]string
}

// IdentityLineage maps every name to itself. It is the lineage of Live.
func IdentityLineage(names []string) *Lineage {
	m := make(map[string]string, len(names))
	for _, n := range names {
		m[n] = n
	}
	return &Lineage{names: m}
}

// Resolve returns the current name for a historical name, or ok=false when
// the file is not of interest at this revision.
func (l *Lineage) Resolve(name string) (string, bool) {
	if l == nil {
		return "", false
	}
	current, ok := l.names[name]
	return current, ok
}

// Len returns the number of names still resolvable.
func (l *Lineage) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// lineageBuilder derives a parent-facing lineage from a frozen one. The
// underlying map is copied on the first mutation only; a revision with no
// lineage effects hands its own frozen instance to its parents.
type lineageBuilder struct {
	base  *Lineage
	names map[string]string
}

func newLineageBuilder(base *Lineage) *lineageBuilder {
	return &lineageBuilder{base: base}
}

func (b *lineageBuilder) mutable() map[string]string {
	if b.names == nil {
		b.names = maps.Clone(b.base.names)
		if b.names == nil {
			b.names = make(map[string]string)
		}
	}
	return b.names
}

func (b *lineageBuilder) lookup(name string) (string, bool) {
	if b.names != nil {
		v, ok := b.names[name]
		return v, ok
	}
	return b.base.Resolve(name)
}

// RecordRename moves the identity carried by newName over to oldName.
// No-op when newName is not of interest.
func (b *lineageBuilder) RecordRename(oldName, newName string) {
	latest, ok := b.lookup(newName)
	if !ok {
		return
	}
	m := b.mutable()
	delete(m, newName)
	m[oldName] = latest
}

// RecordAddition drops name: older revisions cannot resolve a name that was
// introduced here.
func (b *lineageBuilder) RecordAddition(name string) {
	if _, ok := b.lookup(name); !ok {
		return
	}
	delete(b.mutable(), name)
}

// Freeze returns the derived lineage. The builder must not be used after.
func (b *lineageBuilder) Freeze() *Lineage {
	if b.names == nil {
		return b.base
	}
	return &Lineage{names: b.names}
}
