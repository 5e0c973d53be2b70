package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazardscope/hazardscope/pkg/geo"
)

// Keyed is implemented by every record kind a backend can hold.
type Keyed interface {
	Key() string
}

// Codec converts between flat field maps and a record type. Both backends
// decode through the same Codec, so a row means the same thing whether it
// came from a file, a table or a document store.
type Codec[T any] interface {
	// Kind names the record kind for messages: "site" or "subject".
	Kind() string
	// Canonical maps a source column header onto a field name.
	Canonical(header string) (string, bool)
	// Columns lists the canonical fields in output order.
	Columns() []string
	// Required lists the columns a source header must carry.
	Required() []string
	Decode(fields map[string]string) (T, error)
	Encode(item T) map[string]string
}

// normalizeHeader lowercases and drops separators so "Remediation_Status",
// "remediation status" and "RemediationStatus" compare equal.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(h)
}

var siteAliases = map[string]string{
	"id":                FieldID,
	"siteid":            FieldID,
	"name":              FieldName,
	"sitename":          FieldName,
	"status":            FieldStatus,
	"remediationstatus": FieldStatus,
	"contaminants":      FieldContaminants,
	"pollutiontype":     FieldContaminants,
	"state":             FieldState,
	"stateprovince":     FieldState,
	"pollutionclass":    FieldPollutionClass,
	"address":           FieldAddress,
	"addressline":       FieldAddress,
	"city":              FieldCity,
	"postalcode":        FieldPostalCode,
	"zip":               FieldPostalCode,
	"zipcode":           FieldPostalCode,
	"country":           FieldCountry,
	"latitude":          FieldLatitude,
	"lat":               FieldLatitude,
	"longitude":         FieldLongitude,
	"lon":               FieldLongitude,
	"lng":               FieldLongitude,
	"remediationstart":  FieldRemediationStart,
	"remediationfinish": FieldRemediationFinish,
}

var subjectAliases = map[string]string{
	"id":                FieldID,
	"policyid":          FieldID,
	"policynumber":      FieldPolicyNumber,
	"address":           FieldAddress,
	"addressline":       FieldAddress,
	"city":              FieldCity,
	"state":             FieldState,
	"stateprovince":     FieldState,
	"postalcode":        FieldPostalCode,
	"zip":               FieldPostalCode,
	"zipcode":           FieldPostalCode,
	"country":           FieldCountry,
	"latitude":          FieldLatitude,
	"lat":               FieldLatitude,
	"longitude":         FieldLongitude,
	"lon":               FieldLongitude,
	"lng":               FieldLongitude,
	"policytype":        FieldCoverage,
	"coveragetype":      FieldCoverage,
	"coverage":          FieldCoverage,
	"coverageclass":     FieldCoverage,
	"propertyvalue":     FieldValue,
	"endorsementamount": FieldValue,
	"value":             FieldValue,
	"status":            FieldPolicyStatus,
	"policystatus":      FieldPolicyStatus,
	"effectivedate":     FieldEffectiveDate,
	"expirationdate":    FieldExpirationDate,
}

// SiteCodec decodes contamination-site rows.
type SiteCodec struct{}

func (SiteCodec) Kind() string { return "site" }

func (SiteCodec) Canonical(header string) (string, bool) {
	f, ok := siteAliases[normalizeHeader(header)]
	return f, ok
}

func (SiteCodec) Columns() []string {
	return []string{
		FieldID, FieldName, FieldStatus, FieldContaminants, FieldState, FieldPollutionClass,
		FieldAddress, FieldCity, FieldPostalCode, FieldCountry, FieldLatitude, FieldLongitude,
		FieldRemediationStart, FieldRemediationFinish,
	}
}

func (SiteCodec) Required() []string {
	return []string{FieldID, FieldLatitude, FieldLongitude}
}

func (SiteCodec) Decode(fields map[string]string) (Site, error) {
	id := strings.TrimSpace(fields[FieldID])
	if id == "" {
		return Site{}, errors.New("missing id")
	}
	coords, err := parseCoordinates(fields)
	if err != nil {
		return Site{}, err
	}
	return Site{
		ID:                id,
		Name:              strings.TrimSpace(fields[FieldName]),
		Coordinates:       coords,
		Status:            ParseStatus(fields[FieldStatus]),
		Contaminants:      splitList(fields[FieldContaminants]),
		State:             strings.ToUpper(strings.TrimSpace(fields[FieldState])),
		PollutionClass:    strings.TrimSpace(fields[FieldPollutionClass]),
		Address:           strings.TrimSpace(fields[FieldAddress]),
		City:              strings.TrimSpace(fields[FieldCity]),
		PostalCode:        strings.TrimSpace(fields[FieldPostalCode]),
		Country:           strings.TrimSpace(fields[FieldCountry]),
		RemediationStart:  strings.TrimSpace(fields[FieldRemediationStart]),
		RemediationFinish: strings.TrimSpace(fields[FieldRemediationFinish]),
	}, nil
}

func (SiteCodec) Encode(s Site) map[string]string {
	m := map[string]string{
		FieldID:                s.ID,
		FieldName:              s.Name,
		FieldStatus:            string(s.Status),
		FieldContaminants:      strings.Join(s.Contaminants, "; "),
		FieldState:             s.State,
		FieldPollutionClass:    s.PollutionClass,
		FieldAddress:           s.Address,
		FieldCity:              s.City,
		FieldPostalCode:        s.PostalCode,
		FieldCountry:           s.Country,
		FieldRemediationStart:  s.RemediationStart,
		FieldRemediationFinish: s.RemediationFinish,
	}
	encodeCoordinates(m, s.Coordinates)
	return m
}

// SubjectCodec decodes subject (portfolio) rows.
type SubjectCodec struct{}

func (SubjectCodec) Kind() string { return "subject" }

func (SubjectCodec) Canonical(header string) (string, bool) {
	f, ok := subjectAliases[normalizeHeader(header)]
	return f, ok
}

func (SubjectCodec) Columns() []string {
	return []string{
		FieldID, FieldPolicyNumber, FieldAddress, FieldCity, FieldState, FieldPostalCode,
		FieldCountry, FieldLatitude, FieldLongitude, FieldCoverage, FieldValue,
		FieldPolicyStatus, FieldEffectiveDate, FieldExpirationDate,
	}
}

func (SubjectCodec) Required() []string {
	return []string{FieldID}
}

func (SubjectCodec) Decode(fields map[string]string) (Subject, error) {
	id := strings.TrimSpace(fields[FieldID])
	if id == "" {
		return Subject{}, errors.New("missing id")
	}
	coords, err := parseCoordinates(fields)
	if err != nil {
		return Subject{}, err
	}
	var value *float64
	if raw := strings.TrimSpace(fields[FieldValue]); raw != "" {
		cleaned := strings.NewReplacer("$", "", ",", "").Replace(raw)
		v, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return Subject{}, fmt.Errorf("non-numeric value %q", raw)
		}
		value = &v
	}
	return Subject{
		ID:             id,
		PolicyNumber:   strings.TrimSpace(fields[FieldPolicyNumber]),
		Address:        strings.TrimSpace(fields[FieldAddress]),
		City:           strings.TrimSpace(fields[FieldCity]),
		State:          strings.ToUpper(strings.TrimSpace(fields[FieldState])),
		PostalCode:     strings.TrimSpace(fields[FieldPostalCode]),
		Country:        strings.TrimSpace(fields[FieldCountry]),
		Coordinates:    coords,
		CoverageClass:  strings.TrimSpace(fields[FieldCoverage]),
		Value:          value,
		PolicyStatus:   strings.TrimSpace(fields[FieldPolicyStatus]),
		EffectiveDate:  strings.TrimSpace(fields[FieldEffectiveDate]),
		ExpirationDate: strings.TrimSpace(fields[FieldExpirationDate]),
	}, nil
}

func (SubjectCodec) Encode(s Subject) map[string]string {
	m := map[string]string{
		FieldID:             s.ID,
		FieldPolicyNumber:   s.PolicyNumber,
		FieldAddress:        s.Address,
		FieldCity:           s.City,
		FieldState:          s.State,
		FieldPostalCode:     s.PostalCode,
		FieldCountry:        s.Country,
		FieldCoverage:       s.CoverageClass,
		FieldPolicyStatus:   s.PolicyStatus,
		FieldEffectiveDate:  s.EffectiveDate,
		FieldExpirationDate: s.ExpirationDate,
	}
	if s.Value != nil {
		m[FieldValue] = strconv.FormatFloat(*s.Value, 'f', -1, 64)
	}
	encodeCoordinates(m, s.Coordinates)
	return m
}

// parseCoordinates reads the latitude/longitude pair. Both blank means the
// record has no coordinate; anything else malformed is an error.
func parseCoordinates(fields map[string]string) (*geo.Point, error) {
	rawLat := strings.TrimSpace(fields[FieldLatitude])
	rawLon := strings.TrimSpace(fields[FieldLongitude])
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}
	if rawLat == "" || rawLon == "" {
		return nil, errors.New("only one coordinate present")
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return nil, fmt.Errorf("non-numeric latitude %q", rawLat)
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return nil, fmt.Errorf("non-numeric longitude %q", rawLon)
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return nil, fmt.Errorf("coordinate out of range %s", p)
	}
	return &p, nil
}

func encodeCoordinates(m map[string]string, p *geo.Point) {
	if p == nil {
		return
	}
	m[FieldLatitude] = strconv.FormatFloat(p.Lat, 'f', -1, 64)
	m[FieldLongitude] = strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

// splitList splits a contaminant list on ';' or '|'. Commas are kept since
// chemical names contain them.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
