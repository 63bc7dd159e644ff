package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pellelindal/FEEDJetshop/pkg/feed"
	"github.com/pellelindal/FEEDJetshop/pkg/jetshop"
	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
	"github.com/pellelindal/FEEDJetshop/pkg/statestore"
)

const engineMapping = `
version: 1
cultures: ["sv-SE"]
culture_map:
  sv-SE: sv
product_fields:
  - target: Name
    source: texts[name].value
    type: string
stock_fields:
  - target: NewStockCount
    source: stock.count
    type: int
    coerce: coerce
category_fields:
  source: categoryIds
  type: list
  item_type: string
`

const engineMappingWithDynamic = engineMapping + `
dynamic_fields_allowlist:
  - key: fsc
    source: attributes[fsc]
    type: string
    optional: true
`

type fakeFeed struct {
	docs       []feed.Document
	err        error
	exportFrom string
}

func (f *fakeFeed) FetchProducts(_ context.Context, exportFrom, _ string, _ int) ([]feed.Document, error) {
	f.exportFrom = exportFrom
	return f.docs, f.err
}

type fakeDest struct {
	templateID string
	current    map[string]jetshop.ProductData
	getErr     map[string]error

	updates        [][]jetshop.ProductData
	updateFailures []jetshop.ProductResult
	deletes        []string
	deleteErr      error
	dynamicSaves   [][]jetshop.DynamicFieldInput
	dynamicResults []jetshop.DynamicFieldResult
	priceUpdates   [][]map[string]any
}

func (f *fakeDest) TemplateID() string { return f.templateID }

func (f *fakeDest) ProductGet(_ context.Context, culture, articleNumber string) (jetshop.ProductData, error) {
	if err := f.getErr[articleNumber]; err != nil {
		return nil, err
	}
	return f.current[articleNumber], nil
}

func (f *fakeDest) ProductAddUpdate(_ context.Context, products []jetshop.ProductData) ([]jetshop.ProductResult, error) {
	f.updates = append(f.updates, products)
	if f.updateFailures != nil {
		return f.updateFailures, nil
	}
	results := make([]jetshop.ProductResult, 0, len(products))
	for _, p := range products {
		results = append(results, jetshop.ProductResult{
			ArticleNumber: p["ArticleNumber"].(string),
			Culture:       p["Culture"].(string),
			Status:        "SuccessUpdate",
			Success:       true,
		})
	}
	return results, nil
}

func (f *fakeDest) ProductDelete(_ context.Context, articleNumber string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, articleNumber)
	return nil
}

func (f *fakeDest) DynamicFieldsSave(_ context.Context, inputs []jetshop.DynamicFieldInput) ([]jetshop.DynamicFieldResult, error) {
	f.dynamicSaves = append(f.dynamicSaves, inputs)
	if f.dynamicResults != nil {
		return f.dynamicResults, nil
	}
	results := make([]jetshop.DynamicFieldResult, 0, len(inputs))
	for _, in := range inputs {
		results = append(results, jetshop.DynamicFieldResult{Key: in.Key, Success: true})
	}
	return results, nil
}

func (f *fakeDest) PriceListUpdate(_ context.Context, items []map[string]any) error {
	f.priceUpdates = append(f.priceUpdates, items)
	return nil
}

func testEngine(t *testing.T, mappingYAML string, source FeedSource, dest Destination) (*Engine, *statestore.Store) {
	t.Helper()
	cfg, err := mapping.Parse([]byte(mappingYAML))
	require.NoError(t, err)
	state := statestore.New(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(cfg, source, dest, state, nil, logger), state
}

func testDocs(t *testing.T, payload string) []feed.Document {
	t.Helper()
	docs, err := feed.DecodeDocuments([]byte(payload))
	require.NoError(t, err)
	return docs
}

const productDoc = `[{
  "identifier": {"productNo": "P-1"},
  "texts": [{"importCode": "name", "value": {"sv": "Stol"}}],
  "categoryIds": ["10"],
  "stock": {"count": 5}
}]`

func TestRunUpdatesNewProduct(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, productDoc)}
	dest := &fakeDest{templateID: "7"}
	engine, state := testEngine(t, engineMapping, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts.Processed)
	assert.Equal(t, 1, report.Counts.Updated)
	assert.Equal(t, 0, report.Counts.Failed)
	require.Len(t, report.Products, 1)
	assert.Equal(t, ActionUpdate, report.Products[0].Action)
	assert.True(t, report.Products[0].Success)

	require.Len(t, dest.updates, 1)
	payload := dest.updates[0][0]
	assert.Equal(t, "P-1", payload["ArticleNumber"])
	assert.Equal(t, "Stol", payload["Name"])
	assert.Equal(t, "7", payload["TemplateId"])
	categories := payload["ProductInCategories"].([]any)
	require.Len(t, categories, 1)
	assert.Equal(t, map[string]any{"CategoryId": "10"}, categories[0])
	stock := payload["StockData"].(map[string]any)
	assert.Equal(t, int64(5), stock["NewStockCount"])

	// A fully successful run advances the checkpoint.
	last, err := state.LastRun()
	require.NoError(t, err)
	assert.NotEmpty(t, last)
}

func TestRunNoChangeIssuesNoWrites(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, productDoc)}
	dest := &fakeDest{
		current: map[string]jetshop.ProductData{
			"P-1": {
				"ArticleNumber":       "P-1",
				"Culture":             "sv-SE",
				"Name":                "Stol",
				"ProductInCategories": []string{"10"},
				"StockData":           map[string]any{"NewStockCount": int64(5)},
			},
		},
	}
	engine, _ := testEngine(t, engineMapping, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts.NoChange)
	assert.Equal(t, 0, report.Counts.Updated)
	assert.Empty(t, dest.updates)
	assert.Empty(t, dest.dynamicSaves)
	assert.Empty(t, dest.priceUpdates)
}

func TestRunRemovedCategoriesGetDeleteConnections(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, productDoc)}
	dest := &fakeDest{
		current: map[string]jetshop.ProductData{
			"P-1": {
				"ArticleNumber":       "P-1",
				"Culture":             "sv-SE",
				"Name":                "Gammal stol",
				"ProductInCategories": []string{"10", "30"},
				"StockData":           map[string]any{"UseAdvancedStatus": true},
			},
		},
	}
	engine, _ := testEngine(t, engineMapping, source, dest)

	_, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, dest.updates, 1)
	payload := dest.updates[0][0]
	categories := payload["ProductInCategories"].([]any)
	require.Len(t, categories, 2)
	assert.Equal(t, map[string]any{"CategoryId": "10"}, categories[0])
	assert.Equal(t, map[string]any{
		"CategoryId":             "30",
		"ProductInCategoryState": "DeleteConnection",
		"SortOrder":              int64(0),
		"IsCanonical":            false,
	}, categories[1])

	// Unmapped stock settings carry over from the destination.
	stock := payload["StockData"].(map[string]any)
	assert.Equal(t, true, stock["UseAdvancedStatus"])
}

func TestRunDeletesFlaggedProduct(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, `[{
      "identifier": {"productNo": "P-9"},
      "deleted": true
    }]`)}
	dest := &fakeDest{}
	engine, _ := testEngine(t, engineMapping, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts.Deleted)
	assert.Equal(t, []string{"P-9"}, dest.deletes)
	assert.Empty(t, dest.updates)
}

func TestRunDeletesActionDeleteProduct(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, `[{
      "identifier": {"productNo": "P-9"},
      "action": "Delete"
    }]`)}
	dest := &fakeDest{}
	engine, _ := testEngine(t, engineMapping, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts.Deleted)
	assert.Equal(t, []string{"P-9"}, dest.deletes)
	assert.Empty(t, dest.updates)
}

func TestRunFailedDeleteCountsAsFailedOnly(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, `[{
      "identifier": {"productNo": "P-9"},
      "deleted": true
    }]`)}
	dest := &fakeDest{deleteErr: errors.New("boom")}
	engine, _ := testEngine(t, engineMapping, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Counts.Deleted)
	assert.Equal(t, 1, report.Counts.Failed)
	require.Len(t, report.Products, 1)
	assert.Equal(t, ActionDelete, report.Products[0].Action)
	assert.False(t, report.Products[0].Success)
}

func TestRunMappingErrorSkipsAndBlocksCheckpoint(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, `[{
      "identifier": {"productNo": "P-2"},
      "categoryIds": [],
      "stock": {"count": 1}
    }]`)}
	dest := &fakeDest{}
	engine, state := testEngine(t, engineMapping, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Products, 1)
	assert.Equal(t, ActionSkip, report.Products[0].Action)
	assert.False(t, report.Products[0].Success)
	assert.Contains(t, report.Products[0].Errors, "Name: missing required value")
	assert.Equal(t, 1, report.Counts.Failed)
	assert.Empty(t, dest.updates)

	last, err := state.LastRun()
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestRunReadFailureIsolatedToProduct(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, `[
      {"identifier": {"productNo": "P-1"},
       "texts": [{"importCode": "name", "value": {"sv": "Stol"}}],
       "categoryIds": ["10"], "stock": {"count": 5}},
      {"identifier": {"productNo": "P-2"},
       "texts": [{"importCode": "name", "value": {"sv": "Bord"}}],
       "categoryIds": ["10"], "stock": {"count": 2}}
    ]`)}
	dest := &fakeDest{
		getErr: map[string]error{"P-1": errors.New("destination unavailable")},
	}
	engine, state := testEngine(t, engineMapping, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Products, 2)
	assert.Equal(t, ActionReadFailed, report.Products[0].Action)
	assert.False(t, report.Products[0].Success)
	assert.Equal(t, ActionUpdate, report.Products[1].Action)
	assert.True(t, report.Products[1].Success)
	assert.Equal(t, 1, report.Counts.Failed)

	last, err := state.LastRun()
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestRunDynamicFieldNotConnectedTolerated(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, `[{
      "identifier": {"productNo": "P-1"},
      "texts": [{"importCode": "name", "value": {"sv": "Stol"}}],
      "attributes": [{"importCode": "fsc", "value": {"sv": "FSC-C012345"}}],
      "categoryIds": ["10"],
      "stock": {"count": 5}
    }]`)}
	dest := &fakeDest{
		dynamicResults: []jetshop.DynamicFieldResult{{
			Key:     "fsc",
			Success: false,
			Message: "No dynamic field, connected to product, found with key.",
		}},
	}
	engine, _ := testEngine(t, engineMappingWithDynamic, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Products, 1)
	assert.True(t, report.Products[0].Success)
	assert.Equal(t, 0, report.Counts.Failed)
	require.Len(t, dest.dynamicSaves, 1)
	require.Len(t, dest.dynamicSaves[0], 1)
	assert.Equal(t, "fsc", dest.dynamicSaves[0][0].Key)
}

func TestRunDynamicFieldOtherFailureIsHard(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, `[{
      "identifier": {"productNo": "P-1"},
      "texts": [{"importCode": "name", "value": {"sv": "Stol"}}],
      "attributes": [{"importCode": "fsc", "value": {"sv": "FSC-C012345"}}],
      "categoryIds": ["10"],
      "stock": {"count": 5}
    }]`)}
	dest := &fakeDest{
		dynamicResults: []jetshop.DynamicFieldResult{{
			Key:     "fsc",
			Success: false,
			Message: "Internal error",
		}},
	}
	engine, _ := testEngine(t, engineMappingWithDynamic, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Products, 1)
	assert.False(t, report.Products[0].Success)
	assert.Equal(t, 1, report.Counts.Failed)
}

func TestRunDryRunWritesDiffArtifact(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, productDoc)}
	dest := &fakeDest{}
	engine, state := testEngine(t, engineMapping, source, dest)
	diffDir := t.TempDir()

	report, err := engine.Run(context.Background(), Options{DryRun: true, DiffDir: diffDir})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts.DryRun)
	assert.Empty(t, dest.updates)
	assert.Empty(t, dest.deletes)

	data, err := os.ReadFile(filepath.Join(diffDir, "P-1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"target_field": "Name"`)

	// Dry runs never advance the checkpoint.
	last, err := state.LastRun()
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestRunUsesStoredCheckpointAsCursor(t *testing.T) {
	source := &fakeFeed{}
	dest := &fakeDest{}
	engine, state := testEngine(t, engineMapping, source, dest)
	require.NoError(t, state.WriteLastRun("2026-08-01T00:00:00"))

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "2026-08-01T00:00:00", source.exportFrom)
	assert.Equal(t, "2026-08-01T00:00:00", report.ExportFrom)

	// Explicit override wins over the stored cursor.
	_, err = engine.Run(context.Background(), Options{ExportFrom: "2026-08-15T12:00:00"})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-15T12:00:00", source.exportFrom)
}

func TestRunProductUpdateFailureAggregates(t *testing.T) {
	source := &fakeFeed{docs: testDocs(t, productDoc)}
	dest := &fakeDest{
		updateFailures: []jetshop.ProductResult{{
			ArticleNumber: "P-1",
			Culture:       "sv-SE",
			Status:        "ErrorSave",
			Success:       false,
		}},
	}
	engine, _ := testEngine(t, engineMapping, source, dest)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Products, 1)
	assert.False(t, report.Products[0].Success)
	assert.Contains(t, report.Products[0].Errors[0], "sv-SE:ErrorSave")
	assert.Equal(t, 1, report.Counts.Failed)
}

func TestIsNotConnectedMessage(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"No dynamic field, connected to product, found with key.", true},
		{"Dynamic field not connected to product P-1", true},
		{"Invalid value for dynamic field", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isNotConnectedMessage(tt.message), tt.message)
	}
}
