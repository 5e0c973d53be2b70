package record

import (
	"strconv"

	"github.com/hazardscope/hazardscope/pkg/geo"
)

// Subject is a location to be evaluated, typically an insured property.
type Subject struct {
	ID             string     `json:"id"`
	PolicyNumber   string     `json:"policy_number,omitempty"`
	Address        string     `json:"address,omitempty"`
	City           string     `json:"city,omitempty"`
	State          string     `json:"state,omitempty"`
	PostalCode     string     `json:"postal_code,omitempty"`
	Country        string     `json:"country,omitempty"`
	Coordinates    *geo.Point `json:"coordinates,omitempty"`
	CoverageClass  string     `json:"coverage_class,omitempty"`
	Value          *float64   `json:"value,omitempty"`
	PolicyStatus   string     `json:"policy_status,omitempty"`
	EffectiveDate  string     `json:"effective_date,omitempty"`
	ExpirationDate string     `json:"expiration_date,omitempty"`
}

func (s Subject) Key() string { return s.ID }

func (s Subject) Location() (geo.Point, bool) {
	if s.Coordinates == nil {
		return geo.Point{}, false
	}
	return *s.Coordinates, true
}

func (s Subject) Field(name string) (string, bool) {
	var v string
	switch name {
	case FieldID:
		v = s.ID
	case FieldPolicyNumber:
		v = s.PolicyNumber
	case FieldAddress:
		v = s.Address
	case FieldCity:
		v = s.City
	case FieldState:
		v = s.State
	case FieldPostalCode:
		v = s.PostalCode
	case FieldCountry:
		v = s.Country
	case FieldCoverage:
		v = s.CoverageClass
	case FieldValue:
		if s.Value != nil {
			v = strconv.FormatFloat(*s.Value, 'f', -1, 64)
		}
	case FieldPolicyStatus:
		v = s.PolicyStatus
	case FieldEffectiveDate:
		v = s.EffectiveDate
	case FieldExpirationDate:
		v = s.ExpirationDate
	}
	return v, v != ""
}

// FullAddress is the address string handed to a coordinate resolver.
func (s Subject) FullAddress() string {
	return joinAddress(s.Address, s.City, s.State, s.PostalCode)
}
