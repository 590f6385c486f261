package directory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/manifest"
	"github.com/referral-os/directory/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const fixtureManifest = `
license:
  datasets:
    - name: idfpr
      prefix: idfpr_
      state: IL
      enrich: true
      files:
        - idfpr/real_estate_broker.csv
        - idfpr/home_inspector.csv
        - idfpr/*_import_*.csv
    - name: trec
      prefix: trec_
      state: TX
      files: [texas/normalized_brokers.csv]
listing:
  files:
    - path: outscraper/il_attorney.json
      category: Attorney
    - path: outscraper/il_mortgage.csv
      category: Mortgage Lender
`

const brokerCSV = `name,license_number,type,city,state,zip,county,disciplined,is_business
Jane Doe,471.012345,LICENSED REAL ESTATE BROKER,Chicago,IL,60601,Cook,N,
Jane Doe,471.099999,LICENSED REAL ESTATE BROKER,Chicago,IL,60614,Cook,N,
Acme Realty LLC,471.555555,LICENSED REAL ESTATE BROKER,Chicago,IL,60601,Cook,N,true
,471.000001,LICENSED REAL ESTATE MANAGING BROKER,,IL,,,Y,
Ray Appraiser,553.000001,CERTIFIED RESIDENTIAL REAL ESTATE APPRAISER,Peoria,IL,61602,Peoria,N,
`

const inspectorCSV = `name,license_number,type,city,state,zip,county
Jane Doe,471.012345,LICENSED HOME INSPECTOR,Chicago,IL,60601,Cook
Hank Inspector,450.000777,LICENSED HOME INSPECTOR,Naperville,,60540,DuPage
`

const texasCSV = `full_name,license_number,license_type,status,city,zip,county,phone,email
Jane Doe,471.012345,Sales Agent,Active,Austin,78701,Travis,512-555-0100,jane@example.com
Tom Lapsed,600001,Broker,Expired,Dallas,75201,Dallas,,
`

const enrichmentJSON = `{
  "generatedAt": "2026-01-01T00:00:00Z",
  "byLicenseNumber": {
    "471.012345": {
      "phone": "312-555-0100",
      "rating": 4.8,
      "reviewCount": "12",
      "photoUrl": "https://img.example.com/jane.jpg",
      "officeName": "Loop Realty",
      "googlePlaceId": "ChIJ-linked"
    },
    "600001": {"rating": 5}
  }
}`

const attorneyJSON = `[
  {"place_id": "ChIJ-linked", "name": "Jane Doe - Loop Realty", "city": "Chicago", "rating": 4.9, "reviews": 30},
  {"place_id": "ChIJ-attorney-1", "name": "Jane Smith | Smith Law", "city": "Chicago", "state_code": "IL", "postal_code": "60602", "county": "Cook", "site": "https://smithlaw.example.com"},
  {"place_id": "ChIJ-attorney-1", "name": "Jane Smith again", "city": "Chicago"},
  {"place_id": "", "name": "No Id Law", "city": "Chicago"},
  {"place_id": "ChIJ-attorney-2", "name": "Evanston Legal Group", "city": "Evanston", "state": "Illinois", "postal_code": "60201", "rating": "4.2", "reviews": 7, "logo": "https://img.example.com/logo.png"}
]`

const mortgageCSV = `place_id,name,city,state_code,postal_code,county,rating,reviews
ChIJ-mortgage-1,Prairie Home Loans,Aurora,IL,60505,Kane,4.5,20
`

func writeFixture(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixtureDir lays out a data directory with every fixture file.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "idfpr/real_estate_broker.csv", brokerCSV)
	writeFixture(t, dir, "idfpr/home_inspector.csv", inspectorCSV)
	writeFixture(t, dir, "texas/normalized_brokers.csv", texasCSV)
	writeFixture(t, dir, "idfpr/enrichment.json", enrichmentJSON)
	writeFixture(t, dir, "outscraper/il_attorney.json", attorneyJSON)
	writeFixture(t, dir, "outscraper/il_mortgage.csv", mortgageCSV)
	return dir
}

func fixtureManifestT(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse([]byte(fixtureManifest))
	require.NoError(t, err)
	return m
}

func newFixtureDirectory(t *testing.T, dir string) *Directory {
	t.Helper()
	d, err := New(Options{
		DataDir:        dir,
		Manifest:       fixtureManifestT(t),
		EnrichmentFile: "idfpr/enrichment.json",
		ImportDir:      "idfpr",
		ImportDataset:  "idfpr",
	})
	require.NoError(t, err)
	return d
}

func ids(records []*model.Professional) []string {
	out := make([]string, len(records))
	for i, p := range records {
		out[i] = p.ID
	}
	return out
}

func names(records []*model.Professional) []string {
	out := make([]string, len(records))
	for i, p := range records {
		out[i] = p.Name
	}
	return out
}

func ptr[T any](v T) *T { return &v }
