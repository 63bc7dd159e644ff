// Package sync orchestrates one synchronization run: fetch changed
// products from the feed, build the desired destination state, diff it
// against the destination and write only what differs.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pellelindal/FEEDJetshop/pkg/feed"
	"github.com/pellelindal/FEEDJetshop/pkg/jetshop"
	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
	"github.com/pellelindal/FEEDJetshop/pkg/metrics"
	"github.com/pellelindal/FEEDJetshop/pkg/statestore"
	"github.com/pellelindal/FEEDJetshop/pkg/sync/builder"
	"github.com/pellelindal/FEEDJetshop/pkg/sync/comparator"
)

// FeedSource provides changed product documents.
type FeedSource interface {
	FetchProducts(ctx context.Context, exportFrom string, productNo string, limit int) ([]feed.Document, error)
}

// Destination is the writable shop API.
type Destination interface {
	TemplateID() string
	ProductGet(ctx context.Context, culture, articleNumber string) (jetshop.ProductData, error)
	ProductAddUpdate(ctx context.Context, products []jetshop.ProductData) ([]jetshop.ProductResult, error)
	ProductDelete(ctx context.Context, articleNumber string) error
	DynamicFieldsSave(ctx context.Context, inputs []jetshop.DynamicFieldInput) ([]jetshop.DynamicFieldResult, error)
	PriceListUpdate(ctx context.Context, items []map[string]any) error
}

// Product outcome actions.
const (
	ActionSkip       = "skip"
	ActionDelete     = "delete"
	ActionUpdate     = "update"
	ActionNoChange   = "no_change"
	ActionDryRun     = "dry_run"
	ActionReadFailed = "read_failed"
)

// ProductResult is the per-product outcome within a run report.
type ProductResult struct {
	ProductNo      string   `json:"product_no"`
	Action         string   `json:"action"`
	Success        bool     `json:"success"`
	Errors         []string `json:"errors,omitempty"`
	Changes        int      `json:"changes"`
	DynamicChanges int      `json:"dynamic_changes"`
}

// Counts aggregates product outcomes over a run. Failed counts every
// unsuccessful product regardless of its action.
type Counts struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Skipped   int `json:"skipped"`
	NoChange  int `json:"no_change"`
	DryRun    int `json:"dry_run"`
	Failed    int `json:"failed"`
}

// Report is the full outcome of one run.
type Report struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	ExportFrom string          `json:"export_from,omitempty"`
	DryRun     bool            `json:"dry_run"`
	Counts     Counts          `json:"counts"`
	Products   []ProductResult `json:"products"`
}

// Options are the per-run knobs.
type Options struct {
	// DryRun computes and persists diffs without any destination write.
	DryRun bool
	// ProductNo restricts the run to a single product.
	ProductNo string
	// Limit caps the number of products fetched. 0 means no cap.
	Limit int
	// ExportFrom overrides the stored checkpoint cursor.
	ExportFrom string
	// DiffDir is where dry-run diff payloads are written.
	DiffDir string
}

// Engine runs the synchronization. Single-threaded per run: products
// are processed to completion in feed order, and one product's failure
// never stops the batch.
type Engine struct {
	cfg     *mapping.Config
	feed    FeedSource
	dest    Destination
	builder *builder.Builder
	state   *statestore.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine wires a run engine.
func NewEngine(cfg *mapping.Config, source FeedSource, dest Destination, state *statestore.Store, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		feed:    source,
		dest:    dest,
		builder: builder.New(cfg, logger),
		state:   state,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs one synchronization pass. The returned report covers
// every fetched product; only a run with zero failed products advances
// the checkpoint.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	started := e.now()
	runID := uuid.NewString()
	log := e.logger.With("run_id", runID)

	exportFrom := opts.ExportFrom
	if exportFrom == "" && e.state != nil {
		last, err := e.state.LastRun()
		if err != nil {
			log.Warn("checkpoint unreadable, running full export", "error", err)
		}
		exportFrom = last
	}

	log.Info("sync run starting",
		"export_from", exportFrom,
		"dry_run", opts.DryRun,
		"product_no", opts.ProductNo,
		"limit", opts.Limit)

	docs, err := e.feed.FetchProducts(ctx, exportFrom, opts.ProductNo, opts.Limit)
	if err != nil {
		e.observeRun("failed", started)
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	report := &Report{
		RunID:      runID,
		StartedAt:  started,
		ExportFrom: exportFrom,
		DryRun:     opts.DryRun,
		Products:   make([]ProductResult, 0, len(docs)),
	}

	for _, doc := range docs {
		res := e.processProduct(ctx, log, doc, opts)
		report.Products = append(report.Products, res)
		report.Counts.Processed++
		if !res.Success {
			report.Counts.Failed++
		}
		switch res.Action {
		case ActionUpdate:
			if res.Success {
				report.Counts.Updated++
			}
		case ActionDelete:
			if res.Success {
				report.Counts.Deleted++
			}
		case ActionSkip, ActionReadFailed:
			report.Counts.Skipped++
		case ActionNoChange:
			report.Counts.NoChange++
		case ActionDryRun:
			report.Counts.DryRun++
		}
		if e.metrics != nil {
			e.metrics.ObserveProduct(res.Action, res.Success)
		}
	}

	if !opts.DryRun && report.Counts.Failed == 0 && e.state != nil {
		if err := e.state.WriteNow(); err != nil {
			log.Error("checkpoint write failed", "error", err)
		}
	} else if report.Counts.Failed > 0 {
		log.Warn("checkpoint not advanced, failed products will be retried",
			"failed", report.Counts.Failed)
	}

	report.FinishedAt = e.now()
	e.observeRun("success", started)
	log.Info("sync run finished",
		"processed", report.Counts.Processed,
		"updated", report.Counts.Updated,
		"deleted", report.Counts.Deleted,
		"skipped", report.Counts.Skipped,
		"no_change", report.Counts.NoChange,
		"failed", report.Counts.Failed,
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (e *Engine) observeRun(result string, started time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveRun(result, e.now().Sub(started))
}

func (e *Engine) processProduct(ctx context.Context, log *slog.Logger, doc feed.Document, opts Options) ProductResult {
	productNo := doc.ProductNo()
	if productNo == "" {
		log.Error("product without productNo, skipping")
		return ProductResult{Action: ActionSkip, Errors: []string{"missing productNo"}}
	}
	res := ProductResult{ProductNo: productNo}
	log = log.With("product_no", productNo)
	e.logUnmapped(log, doc)

	if doc.Deleted() {
		res.Action = ActionDelete
		if opts.DryRun {
			log.Info("dry-run: would delete product")
			res.Success = true
			return res
		}
		if err := e.dest.ProductDelete(ctx, productNo); err != nil {
			res.Errors = append(res.Errors, err.Error())
			return res
		}
		log.Info("product deleted")
		res.Success = true
		return res
	}

	desired := e.builder.Build(doc, productNo)
	if len(desired.Errors) > 0 {
		log.Error("mapping failed, skipping product", "errors", desired.Errors)
		res.Action = ActionSkip
		res.Errors = desired.Errors
		return res
	}

	current := map[string]jetshop.ProductData{}
	for _, culture := range e.cfg.Cultures {
		cur, err := e.dest.ProductGet(ctx, culture, productNo)
		if err != nil {
			log.Error("destination read failed", "culture", culture, "error", err)
			res.Action = ActionReadFailed
			res.Errors = append(res.Errors, err.Error())
			return res
		}
		if cur == nil {
			cur = jetshop.ProductData{}
		}
		current[culture] = cur
	}

	var changes []comparator.DiffItem
	for _, culture := range e.cfg.Cultures {
		cur := current[culture]
		changes = append(changes, comparator.DiffProductData(cur, desired.ByCulture[culture], culture)...)
		if desired.HasCategories {
			curCats, _ := cur["ProductInCategories"].([]string)
			changes = append(changes, comparator.DiffCategories(toAnySlice(curCats), toAnySlice(desired.Categories), culture)...)
		}
		if len(desired.Stock) > 0 {
			curStock, _ := cur["StockData"].(map[string]any)
			changes = append(changes, comparator.DiffStock(curStock, desired.Stock, culture)...)
		}
	}
	// Dynamic fields cannot be read back reliably, so desired values
	// are always diffed against an empty current state.
	dynamicChanges := comparator.DiffDynamicFields(map[string]map[string]any{}, desired.Dynamic)

	res.Changes = len(changes)
	res.DynamicChanges = len(dynamicChanges)

	if len(changes) == 0 && len(dynamicChanges) == 0 && len(desired.PriceLists) == 0 {
		res.Action = ActionNoChange
		res.Success = true
		return res
	}

	if opts.DryRun {
		res.Action = ActionDryRun
		if err := e.writeDiffArtifact(opts.DiffDir, productNo, changes, dynamicChanges, desired.PriceLists); err != nil {
			log.Warn("diff artifact not written", "error", err)
		}
		log.Info("dry-run: changes detected",
			"changes", len(changes),
			"dynamic_changes", len(dynamicChanges),
			"price_lists", len(desired.PriceLists))
		res.Success = true
		return res
	}

	res.Action = ActionUpdate
	if len(changes) > 0 {
		if err := e.writeProduct(ctx, log, productNo, desired, current); err != nil {
			res.Errors = append(res.Errors, err.Error())
			return res
		}
	}
	if len(dynamicChanges) > 0 {
		res.Errors = append(res.Errors, e.writeDynamicFields(ctx, log, productNo, desired, dynamicChanges)...)
	}
	if len(desired.PriceLists) > 0 {
		if err := e.dest.PriceListUpdate(ctx, desired.PriceLists); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("price list update: %v", err))
		}
	}

	res.Success = len(res.Errors) == 0
	if res.Success {
		log.Info("product updated",
			"changes", len(changes),
			"dynamic_changes", len(dynamicChanges))
	}
	return res
}

// writeProduct issues the combined per-culture add/update covering
// scalar fields, category connections and stock.
func (e *Engine) writeProduct(ctx context.Context, log *slog.Logger, productNo string, desired *builder.Desired, current map[string]jetshop.ProductData) error {
	removed := e.removedCategories(desired, current)
	stock := e.stockWithCarryOver(desired, current)

	payloads := make([]jetshop.ProductData, 0, len(e.cfg.Cultures))
	for _, culture := range e.cfg.Cultures {
		payload := jetshop.ProductData{}
		for k, v := range desired.ByCulture[culture] {
			payload[k] = v
		}
		if tid := e.dest.TemplateID(); tid != "" {
			payload["TemplateId"] = tid
		}
		if desired.HasCategories {
			payload["ProductInCategories"] = builder.CategoryPayload(desired.Categories, removed)
		}
		if len(stock) > 0 {
			payload["StockData"] = stock
		}
		payloads = append(payloads, payload)
	}

	results, err := e.dest.ProductAddUpdate(ctx, payloads)
	if err != nil {
		return fmt.Errorf("product update: %w", err)
	}
	var failures []string
	for _, r := range results {
		if !r.Success {
			failures = append(failures, r.Culture+":"+r.Status)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("product update failed: %s", strings.Join(failures, ", "))
	}
	log.Debug("product written", "cultures", len(payloads), "removed_categories", removed)
	return nil
}

// removedCategories is the union of currently connected ids across all
// cultures minus the desired set; these get explicit delete-connection
// entries rather than silent disconnection.
func (e *Engine) removedCategories(desired *builder.Desired, current map[string]jetshop.ProductData) []string {
	if !desired.HasCategories {
		return nil
	}
	want := map[string]bool{}
	for _, id := range desired.Categories {
		want[id] = true
	}
	seen := map[string]bool{}
	var removed []string
	for _, culture := range e.cfg.Cultures {
		ids, _ := current[culture]["ProductInCategories"].([]string)
		for _, id := range ids {
			if !want[id] && !seen[id] {
				seen[id] = true
				removed = append(removed, id)
			}
		}
	}
	sort.Strings(removed)
	return removed
}

// stockWithCarryOver merges destination stock defaults into the desired
// stock for fields the mapping does not set, so an update does not
// silently reset them.
func (e *Engine) stockWithCarryOver(desired *builder.Desired, current map[string]jetshop.ProductData) map[string]any {
	if len(desired.Stock) == 0 {
		return nil
	}
	stock := map[string]any{}
	for k, v := range desired.Stock {
		stock[k] = v
	}
	if _, ok := stock["UseAdvancedStatus"]; !ok {
		for _, culture := range e.cfg.Cultures {
			curStock, _ := current[culture]["StockData"].(map[string]any)
			if v, has := curStock["UseAdvancedStatus"]; has && v != nil {
				stock["UseAdvancedStatus"] = v
				break
			}
		}
	}
	return stock
}

// writeDynamicFields saves only the keys the diff flagged as changed. A
// destination response saying the field is not connected to the product
// is tolerated: the field simply does not apply to this product.
func (e *Engine) writeDynamicFields(ctx context.Context, log *slog.Logger, productNo string, desired *builder.Desired, changes []comparator.DiffItem) []string {
	changedKeys := map[string]bool{}
	for _, item := range changes {
		changedKeys[item.TargetField] = true
	}
	keys := make([]string, 0, len(changedKeys))
	for key := range changedKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	inputs := make([]jetshop.DynamicFieldInput, 0, len(keys))
	for _, key := range keys {
		values := desired.Dynamic[key]
		cultures := make([]string, 0, len(values))
		for culture := range values {
			cultures = append(cultures, culture)
		}
		sort.Strings(cultures)
		input := jetshop.DynamicFieldInput{ArticleNumber: productNo, Key: key}
		for _, culture := range cultures {
			input.ItemValues = append(input.ItemValues, jetshop.DynamicFieldLocalization{
				Culture: culture,
				Value:   values[culture],
			})
		}
		inputs = append(inputs, input)
	}
	if len(inputs) == 0 {
		return nil
	}

	results, err := e.dest.DynamicFieldsSave(ctx, inputs)
	if err != nil {
		return []string{fmt.Sprintf("dynamic fields save: %v", err)}
	}
	var errs []string
	for _, r := range results {
		if r.Success {
			continue
		}
		if isNotConnectedMessage(r.Message) {
			log.Warn("dynamic field not connected to product, ignoring", "key", r.Key)
			continue
		}
		errs = append(errs, fmt.Sprintf("dynamic field %s: %s", r.Key, r.Message))
	}
	return errs
}

// logUnmapped reports feed attribute and text codes that no mapping
// entry reads, so operators can spot feed additions early.
func (e *Engine) logUnmapped(log *slog.Logger, doc feed.Document) {
	attrs := unmappedCodes(doc["attributes"], e.cfg.MappedAttributeCodes())
	texts := unmappedCodes(doc["texts"], e.cfg.MappedTextCodes())
	if len(attrs) == 0 && len(texts) == 0 {
		return
	}
	log.Info("unmapped feed fields",
		"unmapped_attributes", attrs,
		"unmapped_texts", texts)
}

func unmappedCodes(raw any, mapped []string) []string {
	known := make(map[string]bool, len(mapped))
	for _, code := range mapped {
		known[code] = true
	}
	seen := map[string]bool{}
	items, _ := raw.([]any)
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		code, _ := entry["importCode"].(string)
		if code != "" && !known[code] {
			seen[code] = true
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// isNotConnectedMessage matches the destination's "field exists but is
// not connected to this product" responses, which come in two phrasings.
func isNotConnectedMessage(message string) bool {
	m := strings.ToLower(message)
	if strings.Contains(m, "not connected to product") {
		return true
	}
	return strings.Contains(m, "no dynamic field") && strings.Contains(m, "connected to product")
}

func (e *Engine) writeDiffArtifact(dir, productNo string, changes, dynamicChanges []comparator.DiffItem, priceLists []map[string]any) error {
	if dir == "" {
		dir = "diffs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	payload := map[string]any{
		"product_no":      productNo,
		"changes":         changes,
		"dynamic_changes": dynamicChanges,
		"price_lists":     priceLists,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, productNo+".json"), data, 0o644)
}

func toAnySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
