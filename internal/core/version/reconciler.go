package version

import (
	"errors"
	"sort"
	"time"

	"github.com/artpar/handel/internal/core/fragment"
	"github.com/artpar/handel/internal/core/graph"
)

// Fragments is the view of the fragment registry the reconciler needs.
type Fragments interface {
	Get(name string) (fragment.Fragment, bool)
}

// Reconciler picks tags from immutable snapshots of the local inventory and
// the reference feed. The reference map is already specific to the target
// environment.
type Reconciler struct {
	local     map[string][]VersionRecord // newest first
	reference ReferenceMap
	now       time.Time
}

// NewReconciler indexes local records by service name. now anchors the
// since window, which keeps reconciliation reproducible.
func NewReconciler(local []VersionRecord, reference ReferenceMap, now time.Time) *Reconciler {
	r := &Reconciler{
		local:     make(map[string][]VersionRecord),
		reference: reference,
		now:       now,
	}
	for _, rec := range local {
		r.local[rec.Service] = append(r.local[rec.Service], rec)
	}
	for _, recs := range r.local {
		sort.SliceStable(recs, func(i, j int) bool {
			if !recs[i].BuiltAt.Equal(recs[j].BuiltAt) {
				return recs[i].BuiltAt.After(recs[j].BuiltAt)
			}
			return recs[i].Tag > recs[j].Tag
		})
	}
	if r.reference == nil {
		r.reference = ReferenceMap{}
	}
	return r
}

// Reconcile returns one Decision per service. Every service that cannot be
// resolved is reported; the joined error matches UnresolvableVersionError
// for the first of them in name order.
func (r *Reconciler) Reconcile(fragments Fragments, services graph.Set, since time.Duration) (map[string]Decision, error) {
	decisions := make(map[string]Decision, services.Len())
	var errs []error

	for _, name := range services.Sorted() {
		f, ok := fragments.Get(name)
		if !ok {
			errs = append(errs, &UnresolvableVersionError{Service: name})
			continue
		}
		d, err := r.decide(f, since)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		decisions[name] = d
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return decisions, nil
}

func (r *Reconciler) decide(f fragment.Fragment, since time.Duration) (Decision, error) {
	ref, err := fragment.ParseImage(f.Image)
	if err != nil {
		return Decision{}, err
	}
	keys := lookupKeys(f.Name, ref.ShortName())
	cutoff := r.now.Add(-since)

	var best *VersionRecord
	for _, key := range keys {
		recs := r.local[key]
		if len(recs) == 0 || recs[0].BuiltAt.Before(cutoff) {
			continue
		}
		if best == nil || recs[0].BuiltAt.After(best.BuiltAt) {
			best = &recs[0]
		}
	}
	if best != nil {
		return Decision{Service: f.Name, Tag: best.Tag, Source: SourceLocal, BuiltAt: best.BuiltAt}, nil
	}

	for _, key := range keys {
		if tag, ok := r.reference[key]; ok && tag != "" {
			return Decision{Service: f.Name, Tag: tag, Source: SourceReference}, nil
		}
	}

	if ref.Tag != "" {
		return Decision{Service: f.Name, Tag: ref.Tag, Source: SourceDefault}, nil
	}

	return Decision{}, &UnresolvableVersionError{Service: f.Name, Image: f.Image}
}

// lookupKeys returns the fragment name followed by the image short name when
// they differ.
func lookupKeys(name, short string) []string {
	if short == "" || short == name {
		return []string{name}
	}
	return []string{name, short}
}

// Recent returns the local records built within since of now, newest first.
func (r *Reconciler) Recent(since time.Duration) []VersionRecord {
	cutoff := r.now.Add(-since)
	var out []VersionRecord
	for _, recs := range r.local {
		for _, rec := range recs {
			if !rec.BuiltAt.Before(cutoff) {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BuiltAt.Equal(out[j].BuiltAt) {
			return out[i].BuiltAt.After(out[j].BuiltAt)
		}
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
