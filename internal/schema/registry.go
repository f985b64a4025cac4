package schema

import "fmt"

// Scale is the number of decimal places used by a scaled integer.
// Example: Scale=8 means the integer value is scaled by 1e8.
type Scale int32

// ScaleSpec defines scaling for common numeric fields.
type ScaleSpec struct {
	PriceScale    Scale `json:"priceScale"`
	QuantityScale Scale `json:"quantityScale"`
	NotionalScale Scale `json:"notionalScale"`
	FeeScale      Scale `json:"feeScale"`
}

// VenueID is the numeric identifier for a venue.
type VenueID uint16

// InstrumentID is the numeric identifier for a tradable instrument.
type InstrumentID uint32

// Venue describes a trading venue or broker.
type Venue struct {
	ID   VenueID
	Name string
}

// Instrument describes a tradable instrument.
type Instrument struct {
	ID      InstrumentID
	VenueID VenueID
	Name    string
	Scale   ScaleSpec
}

// Registry stores venue and instrument mappings in a compact form.
// It is built eagerly at startup and read-only afterwards.
type Registry struct {
	venues           []Venue
	instruments      []Instrument
	venueByName      map[string]VenueID
	instrumentByName map[string]InstrumentID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		venueByName:      make(map[string]VenueID),
		instrumentByName: make(map[string]InstrumentID),
	}
}

// AddVenue registers a new venue and returns its ID.
func (r *Registry) AddVenue(name string) (VenueID, error) {
	if name == "" {
		return 0, fmt.Errorf("venue name is empty")
	}
	if id, ok := r.venueByName[name]; ok {
		return id, fmt.Errorf("venue already exists: %s", name)
	}
	id := VenueID(len(r.venues) + 1)
	r.venues = append(r.venues, Venue{ID: id, Name: name})
	r.venueByName[name] = id
	return id, nil
}

// AddInstrument registers a new instrument and returns its ID.
func (r *Registry) AddInstrument(name string, venueID VenueID, scale ScaleSpec) (InstrumentID, error) {
	if name == "" {
		return 0, fmt.Errorf("instrument name is empty")
	}
	if venueID == 0 {
		return 0, fmt.Errorf("venue id is invalid")
	}
	if _, ok := r.Venue(venueID); !ok {
		return 0, fmt.Errorf("venue id not found: %d", venueID)
	}
	if id, ok := r.instrumentByName[name]; ok {
		return id, fmt.Errorf("instrument already exists: %s", name)
	}
	id := InstrumentID(len(r.instruments) + 1)
	r.instruments = append(r.instruments, Instrument{
		ID:      id,
		VenueID: venueID,
		Name:    name,
		Scale:   scale,
	})
	r.instrumentByName[name] = id
	return id, nil
}

// Venue returns the venue by ID.
func (r *Registry) Venue(id VenueID) (Venue, bool) {
	if id == 0 || int(id) > len(r.venues) {
		return Venue{}, false
	}
	return r.venues[id-1], true
}

// Instrument returns the instrument by ID.
func (r *Registry) Instrument(id InstrumentID) (Instrument, bool) {
	if id == 0 || int(id) > len(r.instruments) {
		return Instrument{}, false
	}
	return r.instruments[id-1], true
}

// InstrumentCount returns the number of instruments in the registry.
func (r *Registry) InstrumentCount() int {
	return len(r.instruments)
}

// InstrumentAt returns the instrument by zero-based index. Index order is
// registration order, which the runner relies on for deterministic cycles.
func (r *Registry) InstrumentAt(index int) (Instrument, bool) {
	if index < 0 || index >= len(r.instruments) {
		return Instrument{}, false
	}
	return r.instruments[index], true
}

// VenueIDByName returns the venue ID for a name.
func (r *Registry) VenueIDByName(name string) (VenueID, bool) {
	id, ok := r.venueByName[name]
	return id, ok
}

// InstrumentIDByName returns the instrument ID for a name.
func (r *Registry) InstrumentIDByName(name string) (InstrumentID, bool) {
	id, ok := r.instrumentByName[name]
	return id, ok
}
