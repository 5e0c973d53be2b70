// Package record defines the contamination-site and subject records, and the
// field codec every backend uses to turn flat rows into records.
package record

import (
	"strings"

	"github.com/hazardscope/hazardscope/pkg/geo"
)

// Field names shared by predicates and codecs.
const (
	FieldID                = "id"
	FieldName              = "name"
	FieldStatus            = "status"
	FieldContaminants      = "contaminants"
	FieldState             = "state"
	FieldPollutionClass    = "pollution_class"
	FieldAddress           = "address"
	FieldCity              = "city"
	FieldPostalCode        = "postal_code"
	FieldCountry           = "country"
	FieldLatitude          = "latitude"
	FieldLongitude         = "longitude"
	FieldRemediationStart  = "remediation_start"
	FieldRemediationFinish = "remediation_finish"

	FieldPolicyNumber   = "policy_number"
	FieldCoverage       = "coverage"
	FieldValue          = "value"
	FieldPolicyStatus   = "policy_status"
	FieldEffectiveDate  = "effective_date"
	FieldExpirationDate = "expiration_date"
)

// Site is one contamination site. Immutable once loaded.
type Site struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Coordinates       *geo.Point `json:"coordinates,omitempty"`
	Status            Status     `json:"status"`
	Contaminants      []string   `json:"contaminants,omitempty"`
	State             string     `json:"state,omitempty"`
	PollutionClass    string     `json:"pollution_class,omitempty"`
	Address           string     `json:"address,omitempty"`
	City              string     `json:"city,omitempty"`
	PostalCode        string     `json:"postal_code,omitempty"`
	Country           string     `json:"country,omitempty"`
	RemediationStart  string     `json:"remediation_start,omitempty"`
	RemediationFinish string     `json:"remediation_finish,omitempty"`
}

// Key returns the site's unique identifier.
func (s Site) Key() string { return s.ID }

// Location returns the site coordinate, if it has one.
func (s Site) Location() (geo.Point, bool) {
	if s.Coordinates == nil {
		return geo.Point{}, false
	}
	return *s.Coordinates, true
}

// Field returns a named attribute as text. ok is false for unknown or empty
// fields.
func (s Site) Field(name string) (string, bool) {
	var v string
	switch name {
	case FieldID:
		v = s.ID
	case FieldName:
		v = s.Name
	case FieldStatus:
		v = string(s.Status)
	case FieldContaminants:
		v = strings.Join(s.Contaminants, "; ")
	case FieldState:
		v = s.State
	case FieldPollutionClass:
		v = s.PollutionClass
	case FieldAddress:
		v = s.Address
	case FieldCity:
		v = s.City
	case FieldPostalCode:
		v = s.PostalCode
	case FieldCountry:
		v = s.Country
	case FieldRemediationStart:
		v = s.RemediationStart
	case FieldRemediationFinish:
		v = s.RemediationFinish
	}
	return v, v != ""
}

// FullAddress joins the address parts that are present.
func (s Site) FullAddress() string {
	return joinAddress(s.Address, s.City, s.State, s.PostalCode)
}

func joinAddress(street, city, state, postal string) string {
	var parts []string
	for _, p := range []string{street, city} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	tail := strings.TrimSpace(strings.TrimSpace(state) + " " + strings.TrimSpace(postal))
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}
