package record_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/record"
)

const sitesCSV = `Id,SiteName,PollutionClass,PollutionType,RemediationStatus,AddressLine,City,StateProvince,PostalCode,Country,Latitude,Longitude
S1,Acme Plating,Superfund,Lead; Chromium,In Progress,1 Industrial Way,Fresno,ca,93701,USA,36.7378,-119.7871
S2,Bad Lat Works,Superfund,Arsenic,Not Started,2 Elm St,Fresno,CA,93702,USA,abc,-119.70
S3,North Pole Dump,Superfund,Benzene,Completed,,,,,,95.0,10.0
,Nameless,Superfund,Lead,Active,,,CA,,,36.1,-119.1
S4,No Coordinates Mill,Brownfield,PCB,Deleted,4 Mill Rd,Clovis,CA,93611,USA,,
S1,Duplicate Acme,Superfund,Lead,Active,,,CA,,,36.0,-119.0
S5,Half Located,Superfund,Lead,Active,,,CA,,,36.0,
S6,Old Refinery,Superfund,"1,1-Dichloroethane|TCE",Completed,9 Refinery Rd,Bakersfield,CA,93301,USA,35.3733,-119.0187
`

func TestReadCSVSites(t *testing.T) {
	sites, report, err := record.ReadCSV[record.Site](strings.NewReader(sitesCSV), "sites.csv", record.SiteCodec{})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	var ids []string
	for _, s := range sites {
		ids = append(ids, s.ID)
	}
	if got, want := strings.Join(ids, ","), "S1,S4,S6"; got != want {
		t.Fatalf("loaded IDs = %s, want %s", got, want)
	}

	if report.Rows != 8 || report.Loaded != 3 || len(report.Skipped) != 5 {
		t.Errorf("report = rows %d loaded %d skipped %d, want 8/3/5", report.Rows, report.Loaded, len(report.Skipped))
	}
	if report.Skipped[0].Line != 3 || report.Skipped[0].ID != "S2" {
		t.Errorf("first skipped = %+v, want line 3 id S2", report.Skipped[0])
	}

	s1 := sites[0]
	if s1.Status != record.StatusInProgress {
		t.Errorf("S1 status = %q, want in-progress", s1.Status)
	}
	if s1.State != "CA" {
		t.Errorf("S1 state = %q, want upper-cased CA", s1.State)
	}
	if len(s1.Contaminants) != 2 || s1.Contaminants[1] != "Chromium" {
		t.Errorf("S1 contaminants = %v", s1.Contaminants)
	}
	if loc, ok := s1.Location(); !ok || loc.Lat != 36.7378 {
		t.Errorf("S1 location = %v, %v", loc, ok)
	}

	s4 := sites[1]
	if _, ok := s4.Location(); ok {
		t.Error("S4 has blank coordinates and should have no location")
	}
	if s4.Status != record.StatusDelisted {
		t.Errorf("S4 status = %q, want delisted", s4.Status)
	}

	if got := sites[2].Contaminants; len(got) != 2 || got[0] != "1,1-Dichloroethane" {
		t.Errorf("S6 contaminants = %v, commas inside names must survive", got)
	}
}

func TestReadCSVMissingRequiredColumn(t *testing.T) {
	input := "Id,SiteName,Latitude\nS1,Acme,36.0\n"
	_, _, err := record.ReadCSV[record.Site](strings.NewReader(input), "broken.csv", record.SiteCodec{})
	if err == nil {
		t.Fatal("expected error for missing longitude column")
	}
	if !errors.Is(err, fault.ErrDataLoad) {
		t.Errorf("error kind = %q, want DATA_LOAD", fault.KindOf(err))
	}
	if !strings.Contains(err.Error(), "broken.csv") || !strings.Contains(err.Error(), "longitude") {
		t.Errorf("error %q should name the source and the column", err)
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	_, _, err := record.ReadCSV[record.Subject](strings.NewReader(""), "empty.csv", record.SubjectCodec{})
	if fault.KindOf(err) != fault.KindDataLoad {
		t.Fatalf("err = %v, want DATA_LOAD", err)
	}
}

func TestReadCSVSubjects(t *testing.T) {
	input := `id,policy_number,address,city,state,postal_code,latitude,longitude,coverage_type,property_value
P1,POL-001,10 Main St,Fresno,CA,93701,36.74,-119.78,Comprehensive,"$1,250,000"
P2,POL-002,20 Oak Ave,Clovis,CA,93611,,,Fire & Liability,
P3,POL-003,30 Pine St,Clovis,CA,93611,,,Comprehensive,lots
`
	subjects, report, err := record.ReadCSV[record.Subject](strings.NewReader(input), "policies.csv", record.SubjectCodec{})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(subjects) != 2 || len(report.Skipped) != 1 {
		t.Fatalf("got %d subjects and %d skipped, want 2 and 1", len(subjects), len(report.Skipped))
	}
	p1 := subjects[0]
	if p1.Value == nil || *p1.Value != 1250000 {
		t.Errorf("P1 value = %v, want 1250000", p1.Value)
	}
	if p1.CoverageClass != "Comprehensive" {
		t.Errorf("P1 coverage = %q", p1.CoverageClass)
	}
	if got := p1.FullAddress(); got != "10 Main St, Fresno, CA 93701" {
		t.Errorf("FullAddress = %q", got)
	}
	if _, ok := subjects[1].Location(); ok {
		t.Error("P2 should have no location")
	}
	if v, ok := subjects[1].Field(record.FieldValue); ok {
		t.Errorf("P2 value field = %q, want absent", v)
	}
}

func TestWriteCSVReadsBack(t *testing.T) {
	sites, _, err := record.ReadCSV[record.Site](strings.NewReader(sitesCSV), "sites.csv", record.SiteCodec{})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	var buf bytes.Buffer
	if err := record.WriteCSV(&buf, record.SiteCodec{}, sites); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	again, report, err := record.ReadCSV[record.Site](&buf, "roundtrip.csv", record.SiteCodec{})
	if err != nil {
		t.Fatalf("ReadCSV roundtrip: %v", err)
	}
	if len(report.Skipped) != 0 || len(again) != len(sites) {
		t.Fatalf("roundtrip lost rows: %+v", report)
	}
	for i := range sites {
		if again[i].ID != sites[i].ID || again[i].Status != sites[i].Status {
			t.Errorf("row %d: got %s/%s want %s/%s", i, again[i].ID, again[i].Status, sites[i].ID, sites[i].Status)
		}
		a, aok := again[i].Location()
		b, bok := sites[i].Location()
		if aok != bok || a != b {
			t.Errorf("row %d: location %v/%v, want %v/%v", i, a, aok, b, bok)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want record.Status
	}{
		{"Completed", record.StatusComplete},
		{"complete", record.StatusComplete},
		{"In Progress", record.StatusInProgress},
		{"in_progress", record.StatusInProgress},
		{"Not Started", record.StatusNotStarted},
		{"Deleted", record.StatusDelisted},
		{"DELISTED", record.StatusDelisted},
		{"  active ", record.StatusActive},
		{"", record.StatusUnknown},
		{"proposed", record.StatusUnknown},
	}
	for _, tt := range tests {
		if got := record.ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnremediated(t *testing.T) {
	for _, s := range record.UnremediatedStatuses() {
		if !s.Unremediated() {
			t.Errorf("%q should be unremediated", s)
		}
	}
	for _, s := range []record.Status{record.StatusComplete, record.StatusDelisted} {
		if s.Unremediated() {
			t.Errorf("%q should not be unremediated", s)
		}
	}
}
