// Package resolve completes the participants of imported records with the
// entities stored in the logbook.
package resolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/logging"
)

// Lookup finds stored entities by natural key. Each method returns
// core.ErrNotFound or core.ErrMultipleResults when no single entity matches.
type Lookup interface {
	FindPilotByName(ctx context.Context, lastName, firstName string) (core.Pilot, error)
	FindPlaneByRegistration(ctx context.Context, registration string) (core.Airplane, error)
	FindLaunchMethodByNameOrShortName(ctx context.Context, name string) (core.LaunchMethod, error)
	FindLaunchMethodByTowplane(ctx context.Context, registration string) (core.LaunchMethod, error)
}

// Resolver resolves the participant stubs of records. Entities that cannot
// be resolved are collected for the end-of-run report.
type Resolver struct {
	lookup  Lookup
	aliases *Aliases

	missingPilots        map[string]bool
	missingPlanes        map[string]bool
	missingLaunchMethods map[string]bool
}

// NewResolver creates a resolver. aliases may be nil.
func NewResolver(lookup Lookup, aliases *Aliases) *Resolver {
	if aliases == nil {
		aliases = NewAliases()
	}
	return &Resolver{
		lookup:               lookup,
		aliases:              aliases,
		missingPilots:        make(map[string]bool),
		missingPlanes:        make(map[string]bool),
		missingLaunchMethods: make(map[string]bool),
	}
}

// Resolve looks up every participant of rec. Unresolved participants keep
// ID 0. Only storage failures are returned.
func (r *Resolver) Resolve(ctx context.Context, rec *core.Record) error {
	if err := r.Plane(ctx, rec.Plane); err != nil {
		return err
	}
	if err := r.Plane(ctx, rec.Towplane); err != nil {
		return err
	}
	if err := r.Pilot(ctx, rec.Pilot); err != nil {
		return err
	}
	if err := r.Pilot(ctx, rec.Copilot); err != nil {
		return err
	}
	if err := r.Pilot(ctx, rec.Towpilot); err != nil {
		return err
	}
	return r.LaunchMethod(ctx, rec.LaunchMethod)
}

// Pilot resolves p by "last, first" after applying pilot aliases.
func (r *Resolver) Pilot(ctx context.Context, p *core.Pilot) error {
	if p == nil || (p.LastName == "" && p.FirstName == "") {
		return nil
	}

	if alias, ok := r.aliases.Pilots[Name{Last: p.LastName, First: p.FirstName}]; ok {
		p.LastName, p.FirstName = alias.Last, alias.First
	}

	found, err := r.lookup.FindPilotByName(ctx, p.LastName, p.FirstName)
	if core.IsUnresolved(err) {
		r.missingPilots[p.Key()] = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("find pilot %q: %w", p.Key(), err)
	}

	*p = found
	return nil
}

// Plane resolves a by registration after applying plane aliases.
func (r *Resolver) Plane(ctx context.Context, a *core.Airplane) error {
	if a == nil || a.Registration == "" {
		return nil
	}

	if alias, ok := r.aliases.Planes[a.Registration]; ok {
		a.Registration = alias
	}

	found, err := r.lookup.FindPlaneByRegistration(ctx, a.Registration)
	if core.IsUnresolved(err) {
		r.missingPlanes[a.Registration] = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("find plane %q: %w", a.Registration, err)
	}

	*a = found
	return nil
}

// LaunchMethod resolves lm by name or short name. Airtows fall back to the
// launch method of the tow-plane and then to the generic airtow; self
// launches fall back to the generic self launch.
func (r *Resolver) LaunchMethod(ctx context.Context, lm *core.LaunchMethod) error {
	if lm == nil || lm.Name == "" {
		return nil
	}

	if alias, ok := r.aliases.LaunchMethods[lm.Name]; ok {
		lm.Name = alias
	}

	attempts := []func() (core.LaunchMethod, error){
		func() (core.LaunchMethod, error) {
			return r.lookup.FindLaunchMethodByNameOrShortName(ctx, lm.Name)
		},
	}
	switch lm.Type {
	case core.LaunchAirtow:
		if lm.TowplaneRegistration != "" {
			reg := lm.TowplaneRegistration
			attempts = append(attempts, func() (core.LaunchMethod, error) {
				return r.lookup.FindLaunchMethodByTowplane(ctx, reg)
			})
		}
		attempts = append(attempts, func() (core.LaunchMethod, error) {
			return r.lookup.FindLaunchMethodByNameOrShortName(ctx, core.GenericAirtowName)
		})
	case core.LaunchSelf:
		attempts = append(attempts, func() (core.LaunchMethod, error) {
			return r.lookup.FindLaunchMethodByNameOrShortName(ctx, core.GenericSelfName)
		})
	}

	for _, attempt := range attempts {
		found, err := attempt()
		if core.IsUnresolved(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("find launch method %q: %w", lm.Name, err)
		}
		if found.Name != lm.Name {
			logging.FromContext(ctx).Debug("launch method resolved by fallback",
				"name", lm.Name, "resolved", found.Name)
		}
		*lm = found
		return nil
	}

	r.missingLaunchMethods[lm.Name] = true
	return nil
}

// Missing returns the natural keys of every entity that could not be
// resolved so far, sorted per category.
func (r *Resolver) Missing() core.MissingReport {
	return core.MissingReport{
		Pilots:        sortedKeys(r.missingPilots),
		Planes:        sortedKeys(r.missingPlanes),
		LaunchMethods: sortedKeys(r.missingLaunchMethods),
	}
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
