// Package fixtures loads the demo flights, passengers, presets and users that
// the desk starts with, and seeds them into empty tables.
package fixtures

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/pkg/utils"
)

//go:embed data/*.json schema/*.json
var embedded embed.FS

// FlightFixture is a flight with its manifest. Departure is relative to the
// seeding time so that demo data never goes stale.
type FlightFixture struct {
	FlightNumber           string             `json:"flight_number"`
	Origin                 string             `json:"origin"`
	Destination            string             `json:"destination"`
	DepartureOffsetMinutes int                `json:"departure_offset_minutes"`
	DisruptionStatus       string             `json:"disruption_status"`
	DelayMinutes           int                `json:"delay_minutes"`
	DisruptionReason       string             `json:"disruption_reason"`
	Passengers             []entity.Passenger `json:"passengers"`
}

// Set is a validated fixture bundle
type Set struct {
	Users   []entity.User
	Flights []FlightFixture
	Presets []entity.Preset
}

// SchemaError lists every schema violation found in one fixture file
type SchemaError struct {
	File   string
	Errors []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("fixture %s failed schema validation: %s", e.File, strings.Join(e.Errors, "; "))
}

// Load returns the embedded fixtures
func Load() (*Set, error) {
	return LoadFS(embedded)
}

// LoadFS reads data/<name>.json and validates it against
// schema/<name>.schema.json for users, flights and presets
func LoadFS(fsys fs.FS) (*Set, error) {
	set := &Set{}
	if err := decode(fsys, "users", &set.Users); err != nil {
		return nil, err
	}
	if err := decode(fsys, "flights", &set.Flights); err != nil {
		return nil, err
	}
	if err := decode(fsys, "presets", &set.Presets); err != nil {
		return nil, err
	}
	if err := set.check(); err != nil {
		return nil, err
	}
	return set, nil
}

func decode(fsys fs.FS, name string, v interface{}) error {
	dataPath := "data/" + name + ".json"
	doc, err := fs.ReadFile(fsys, dataPath)
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", dataPath, err)
	}
	schema, err := fs.ReadFile(fsys, "schema/"+name+".schema.json")
	if err != nil {
		return fmt.Errorf("read schema for %s: %w", name, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate fixture %s: %w", dataPath, err)
	}
	if !result.Valid() {
		serr := &SchemaError{File: dataPath}
		for _, re := range result.Errors() {
			serr.Errors = append(serr.Errors, fmt.Sprintf("%v", re))
		}
		return serr
	}

	if err := json.Unmarshal(doc, v); err != nil {
		return fmt.Errorf("decode fixture %s: %w", dataPath, err)
	}
	return nil
}

// check enforces the cross-record rules a schema cannot express
func (s *Set) check() error {
	users := make(map[string]bool)
	for _, u := range s.Users {
		if users[u.Username] {
			return fmt.Errorf("fixture users: duplicate username %q", u.Username)
		}
		users[u.Username] = true
	}

	flights := make(map[string]bool)
	pnrs := make(map[string]bool)
	for _, f := range s.Flights {
		if flights[f.FlightNumber] {
			return fmt.Errorf("fixture flights: duplicate flight %s", f.FlightNumber)
		}
		flights[f.FlightNumber] = true
		for _, p := range f.Passengers {
			key := f.FlightNumber + "/" + p.PNR
			if pnrs[key] {
				return fmt.Errorf("fixture flights: duplicate PNR %s on %s", p.PNR, f.FlightNumber)
			}
			pnrs[key] = true
			if err := checkPassenger(p); err != nil {
				return fmt.Errorf("fixture flights: %s on %s: %w", p.PNR, f.FlightNumber, err)
			}
		}
	}

	presets := make(map[string]bool)
	for _, p := range s.Presets {
		key := p.VoucherType + "/" + p.DisruptionCategory
		if presets[key] {
			return fmt.Errorf("fixture presets: duplicate preset %s", key)
		}
		presets[key] = true
	}
	return nil
}

func checkPassenger(p entity.Passenger) error {
	if err := utils.ValidatePNR(p.PNR); err != nil {
		return err
	}
	if p.Phone != "" {
		if err := utils.ValidatePhone(p.Phone); err != nil {
			return err
		}
	}
	if p.Email != "" {
		if err := utils.ValidateEmail(p.Email); err != nil {
			return err
		}
	}
	return nil
}
