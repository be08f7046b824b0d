// Package world provides the location catalog: the named places players can
// occupy, with the default spawn location and display names.
package world

import (
	"fmt"
	"strings"
)

// Location is one named place in the game world. Locations are flat keys,
// not a navigable graph; they exist to scope broadcast visibility.
type Location struct {
	// ID is the location key clients reference.
	ID string `yaml:"id"`
	// DisplayName is the human-readable name (e.g. "the Park").
	DisplayName string `yaml:"display_name"`
}

// Catalog holds the known locations and the default spawn location.
// A Catalog is immutable after construction.
type Catalog struct {
	defaultID string
	byID      map[string]Location
	order     []string
}

// NewCatalog builds a catalog from a default location id and entries.
//
// Precondition: defaultID must be non-empty and listed in entries; entry ids
// must be unique and non-empty.
func NewCatalog(defaultID string, entries []Location) (*Catalog, error) {
	var errs []string
	if defaultID == "" {
		errs = append(errs, "default location must not be empty")
	}

	byID := make(map[string]Location, len(entries))
	order := make([]string, 0, len(entries))
	for _, loc := range entries {
		if loc.ID == "" {
			errs = append(errs, "location id must not be empty")
			continue
		}
		if _, dup := byID[loc.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate location id %q", loc.ID))
			continue
		}
		byID[loc.ID] = loc
		order = append(order, loc.ID)
	}

	if _, ok := byID[defaultID]; defaultID != "" && !ok {
		errs = append(errs, fmt.Sprintf("default location %q is not listed", defaultID))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("validating location catalog: %s", strings.Join(errs, "; "))
	}

	return &Catalog{defaultID: defaultID, byID: byID, order: order}, nil
}

// Default returns the spawn location id for new sessions.
func (c *Catalog) Default() string {
	return c.defaultID
}

// Known reports whether id is a listed location.
func (c *Catalog) Known(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// DisplayName returns the display name for id, falling back to the id
// itself for unlisted locations (clients may declare locations the catalog
// does not know about).
func (c *Catalog) DisplayName(id string) string {
	if loc, ok := c.byID[id]; ok && loc.DisplayName != "" {
		return loc.DisplayName
	}
	return id
}

// IDs returns the listed location ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// DefaultCatalog returns the built-in catalog used when no locations file is
// configured. New sessions spawn in the Park.
func DefaultCatalog() *Catalog {
	cat, err := NewCatalog("Park", []Location{
		{ID: "Park", DisplayName: "the Park"},
		{ID: "Beach", DisplayName: "the Beach"},
		{ID: "Downtown", DisplayName: "Downtown"},
	})
	if err != nil {
		panic(fmt.Sprintf("world.DefaultCatalog: %v", err))
	}
	return cat
}
