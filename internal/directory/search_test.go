package directory

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-os/directory/internal/model"
)

func searchFixture() []*model.Professional {
	return []*model.Professional{
		{ID: "1", Name: "Maria Lopez", Company: "Lopez Homes", City: "Chicago", Zip: "60601", County: "Cook", LicenseNumber: "471.1", Category: model.CategoryRealtor},
		{ID: "2", Name: "Jane Doe", City: "Chicago", Zip: "60614", County: "Cook", LicenseNumber: "471.2", Category: model.CategoryRealtor},
		{ID: "3", Name: "Doe Jane", City: "Evanston", Zip: "60201", County: "Cook", LicenseNumber: "471.3", Category: model.CategoryHomeInspector},
		{ID: "4", Name: "Jane Doeman", City: "Naperville", Zip: "60540", County: "DuPage", LicenseNumber: "471.4", Category: model.CategoryAttorney},
		{ID: "5", Name: "Bob Smith", Company: "Jane Doe Realty", City: "Aurora", Zip: "60505", County: "Kane", LicenseNumber: "471.5", Category: model.CategoryAttorney},
		{ID: "6", Name: "Alice Jones", City: "South Chicago Heights", Zip: "60411", County: "Cook", LicenseNumber: "555.6", Category: model.CategoryInsuranceAgent},
	}
}

func newSearchIndex(source model.Source, records []*model.Professional) *Index {
	var calls atomic.Int32
	return NewIndex(source, staticBuild(&calls, records...))
}

func TestSearch_Filters(t *testing.T) {
	ix := newSearchIndex(model.SourceLicense, searchFixture())
	ctx := context.Background()

	tests := []struct {
		name   string
		params model.SearchParams
		want   []string
	}{
		{"no filters keeps source order", model.SearchParams{}, []string{"1", "2", "3", "4", "5", "6"}},
		{"category exact", model.SearchParams{Category: "Attorney"}, []string{"4", "5"}},
		{"category All is a no-op", model.SearchParams{Category: "All"}, []string{"1", "2", "3", "4", "5", "6"}},
		{"category is case sensitive", model.SearchParams{Category: "attorney"}, []string{}},
		{"city substring ignores case", model.SearchParams{City: "chicago"}, []string{"1", "2", "6"}},
		{"zip prefix", model.SearchParams{Zip: "606"}, []string{"1", "2"}},
		{"county substring", model.SearchParams{County: "du"}, []string{"4"}},
		{"zip kept for numeric query", model.SearchParams{Zip: "60614", Q: "471"}, []string{"2"}},
		{"zip ignored for name query", model.SearchParams{Zip: "60614", Q: "jane"}, []string{"2", "4", "3", "5"}},
		{"combined filters", model.SearchParams{Category: "Realtor", City: "chicago", Zip: "60601"}, []string{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ix.Search(ctx, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res.Data))
			assert.Equal(t, len(tt.want), res.Total)
		})
	}
}

func TestSearch_CategoryExactness(t *testing.T) {
	ix := newSearchIndex(model.SourceLicense, searchFixture())

	res, err := ix.Search(context.Background(), model.SearchParams{Category: string(model.CategoryAttorney)})
	require.NoError(t, err)
	require.NotEmpty(t, res.Data)
	for _, p := range res.Data {
		assert.Equal(t, model.CategoryAttorney, p.Category)
	}
}

func TestSearch_Relevance(t *testing.T) {
	ix := newSearchIndex(model.SourceLicense, searchFixture())

	res, err := ix.Search(context.Background(), model.SearchParams{Q: "Jane Doe"})
	require.NoError(t, err)

	// exact name 100, prefix 80, all terms in name 60, terms only in company 0
	assert.Equal(t, []string{"Jane Doe", "Jane Doeman", "Doe Jane", "Bob Smith"}, names(res.Data))
	assert.Equal(t, 4, res.Total)
}

func TestSearch_AllTermsMustMatch(t *testing.T) {
	ix := newSearchIndex(model.SourceLicense, searchFixture())

	res, err := ix.Search(context.Background(), model.SearchParams{Q: "jane aurora"})
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, ids(res.Data))

	res, err = ix.Search(context.Background(), model.SearchParams{Q: "jane nowhere"})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.NotNil(t, res.Data)
}

func TestSearch_NaturalKeyInHaystack(t *testing.T) {
	records := searchFixture()

	license := newSearchIndex(model.SourceLicense, records)
	res, err := license.Search(context.Background(), model.SearchParams{Q: "555.6"})
	require.NoError(t, err)
	assert.Equal(t, []string{"6"}, ids(res.Data))

	res, err = license.Search(context.Background(), model.SearchParams{Q: "60411"})
	require.NoError(t, err)
	assert.Empty(t, res.Data, "license haystack has no zip")

	listing := newSearchIndex(model.SourceListing, records)
	res, err = listing.Search(context.Background(), model.SearchParams{Q: "60411"})
	require.NoError(t, err)
	assert.Equal(t, []string{"6"}, ids(res.Data))

	res, err = listing.Search(context.Background(), model.SearchParams{Q: "555.6"})
	require.NoError(t, err)
	assert.Empty(t, res.Data, "listing haystack has no license number")
}

func TestSearch_PhotoAndRatingBonus(t *testing.T) {
	ix := newSearchIndex(model.SourceLicense, []*model.Professional{
		{ID: "plain", Name: "Ann Zed"},
		{ID: "rated", Name: "Ann Young", Rating: ptr(4.0)},
		{ID: "photo", Name: "Ann Xu", PhotoURL: ptr("https://img/x.jpg")},
		{ID: "both", Name: "Ann Wu", Rating: ptr(3.0), PhotoURL: ptr("https://img/w.jpg")},
		{ID: "zero", Name: "Ann Abbot", Rating: ptr(0.0)},
	})

	res, err := ix.Search(context.Background(), model.SearchParams{Q: "ann"})
	require.NoError(t, err)
	assert.Equal(t, []string{"both", "photo", "rated", "zero", "plain"}, ids(res.Data))
}

func TestSearch_PartialNameCredit(t *testing.T) {
	ix := newSearchIndex(model.SourceLicense, []*model.Professional{
		{ID: "none", Name: "Carl Brown", Company: "Oak Street", City: "Oak Park"},
		{ID: "half", Name: "Oak Brown", City: "Oak Park", Company: "street"},
	})

	res, err := ix.Search(context.Background(), model.SearchParams{Q: "oak street"})
	require.NoError(t, err)
	assert.Equal(t, []string{"half", "none"}, ids(res.Data))
}

func TestSearch_Pagination(t *testing.T) {
	var records []*model.Professional
	for i := range 250 {
		records = append(records, &model.Professional{ID: fmt.Sprintf("p%03d", i), Name: fmt.Sprintf("Pro %03d", i)})
	}
	ix := newSearchIndex(model.SourceLicense, records)
	ctx := context.Background()

	t.Run("default limit", func(t *testing.T) {
		res, err := ix.Search(ctx, model.SearchParams{})
		require.NoError(t, err)
		assert.Equal(t, 50, res.Limit)
		assert.Len(t, res.Data, 50)
		assert.Equal(t, 250, res.Total)
	})

	t.Run("limit clamped", func(t *testing.T) {
		res, err := ix.Search(ctx, model.SearchParams{Limit: 5000})
		require.NoError(t, err)
		assert.Equal(t, 200, res.Limit)
		assert.Len(t, res.Data, 200)
	})

	t.Run("negative offset", func(t *testing.T) {
		res, err := ix.Search(ctx, model.SearchParams{Limit: 1, Offset: -5})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Offset)
		assert.Equal(t, []string{"p000"}, ids(res.Data))
	})

	t.Run("offset beyond total", func(t *testing.T) {
		res, err := ix.Search(ctx, model.SearchParams{Offset: 1000})
		require.NoError(t, err)
		assert.NotNil(t, res.Data)
		assert.Empty(t, res.Data)
		assert.Equal(t, 250, res.Total)
	})

	t.Run("pages are stable", func(t *testing.T) {
		for _, q := range []string{"", "pro"} {
			page3, err := ix.Search(ctx, model.SearchParams{Q: q, Limit: 10, Offset: 20})
			require.NoError(t, err)
			whole, err := ix.Search(ctx, model.SearchParams{Q: q, Limit: 30})
			require.NoError(t, err)
			assert.Equal(t, ids(whole.Data[20:30]), ids(page3.Data), "q=%q", q)
		}
	})
}
