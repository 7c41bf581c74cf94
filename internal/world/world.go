package world

import (
	"errors"
	"log/slog"
	"sync"
)

// UnknownLocation stands in when the world defines no locations.
const UnknownLocation = "unknown location"

// ErrUnknownLocation is returned when a name cannot be resolved.
var ErrUnknownLocation = errors.New("unknown location")

// Location is a named place and the objects usable there.
type Location struct {
	Name    string   `yaml:"name" json:"name"`
	Objects []string `yaml:"objects" json:"objects"`
}

// Static is an in-memory world. Its zero value is an empty world.
type Static struct {
	mu        sync.RWMutex
	locations []Location
	logger    *slog.Logger
}

// NewStatic creates a world from a list of locations, in display order.
func NewStatic(locations ...Location) *Static {
	w := &Static{logger: slog.Default()}
	w.Replace(locations)
	return w
}

// Replace swaps the whole location list.
func (w *Static) Replace(locations []Location) {
	cp := make([]Location, len(locations))
	for i, l := range locations {
		cp[i] = Location{Name: l.Name, Objects: append([]string(nil), l.Objects...)}
	}
	w.mu.Lock()
	w.locations = cp
	w.mu.Unlock()
}

// LocationNames lists every location, or the UnknownLocation placeholder
// when there are none.
func (w *Static) LocationNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.locations) == 0 {
		w.log().Warn("world has no locations, using placeholder", "placeholder", UnknownLocation)
		return []string{UnknownLocation}
	}
	names := make([]string, len(w.locations))
	for i, l := range w.locations {
		names[i] = l.Name
	}
	return names
}

// ObjectsAt lists objects at the location best matching name.
func (w *Static) ObjectsAt(name string) []string {
	loc, err := w.Lookup(name)
	if err != nil {
		return nil
	}
	return loc.Objects
}

// Lookup resolves name to a location.
func (w *Static) Lookup(name string) (Location, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, len(w.locations))
	for i, l := range w.locations {
		names[i] = l.Name
	}
	resolved, tier := Resolve(name, names)
	if tier == TierNone {
		return Location{}, ErrUnknownLocation
	}
	for _, l := range w.locations {
		if l.Name == resolved {
			return Location{Name: l.Name, Objects: append([]string(nil), l.Objects...)}, nil
		}
	}
	return Location{}, ErrUnknownLocation
}

// Locations returns a copy of every location.
func (w *Static) Locations() []Location {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Location, len(w.locations))
	for i, l := range w.locations {
		out[i] = Location{Name: l.Name, Objects: append([]string(nil), l.Objects...)}
	}
	return out
}

func (w *Static) log() *slog.Logger {
	if w.logger == nil {
		return slog.Default()
	}
	return w.logger
}
