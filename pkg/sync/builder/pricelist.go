package builder

import (
	"fmt"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
	"github.com/pellelindal/FEEDJetshop/pkg/feed"
	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
)

// discountClearedSentinel is the destination's "remove any discount"
// value for DiscountedPriceIncVat.
const discountClearedSentinel = int64(-1)

// buildPriceLists resolves every configured price list into a
// ready-to-send entry. Price lists are written unconditionally on every
// update, so an entry is only produced when a price could be resolved.
func (b *Builder) buildPriceLists(idx *feed.Index, productNo string, errors *[]string) []map[string]any {
	if len(b.cfg.PriceLists) == 0 {
		return nil
	}
	items := make([]map[string]any, 0, len(b.cfg.PriceLists))
	for _, pl := range b.cfg.PriceLists {
		item := b.buildPriceListItem(pl, idx, productNo, errors)
		if item != nil {
			items = append(items, item)
		}
	}
	return items
}

func (b *Builder) buildPriceListItem(pl mapping.PriceList, idx *feed.Index, productNo string, errors *[]string) map[string]any {
	field := fmt.Sprintf("price_list:%s", pl.PriceListID)

	price := b.resolvePriceValue(idx, pl.PriceSource)
	if coercion.IsEmpty(price) {
		if !pl.Optional {
			*errors = append(*errors, field+" missing price")
		}
		return nil
	}
	price = b.coerceWithPolicy(price, coercion.Type(pl.Type), pl.Policy(), "", field, errors)
	if price == nil {
		return nil
	}

	item := map[string]any{
		"ArticleNumber": productNo,
		"PriceListId":   pl.PriceListID,
		"PriceIncVat":   price,
	}

	discountCleared := false
	if pl.DiscountedPriceSource != "" {
		discounted := b.resolvePriceValue(idx, pl.DiscountedPriceSource)
		empty := coercion.IsEmpty(discounted)
		// A zero discount price means "no discount" in the feed, so it
		// clears the same way an absent one does.
		if pl.ClearDiscountOnMissing && !empty && isZeroNumber(discounted) {
			empty = true
		}
		if empty {
			if pl.ClearDiscountOnMissing {
				item["DiscountedPriceIncVat"] = discountClearedSentinel
				discountCleared = true
			}
		} else {
			coerced := b.coerceWithPolicy(discounted, coercion.Type(pl.Type), pl.Policy(), "", field+" discount", errors)
			if coerced != nil {
				item["DiscountedPriceIncVat"] = coerced
			}
		}
	} else if pl.ClearDiscountOnMissing {
		item["DiscountedPriceIncVat"] = discountClearedSentinel
		discountCleared = true
	}

	if pl.DiscountPeriodSource != "" {
		b.applyDiscountPeriod(item, pl, idx, field, discountCleared, errors)
	}

	if pl.HideProductSource != "" {
		show := b.resolvePriceValue(idx, pl.HideProductSource)
		if coercion.IsEmpty(show) {
			// No visibility signal in the feed hides the product
			// rather than leaving it exposed.
			item["HideProduct"] = true
		} else {
			coerced := b.coerceWithPolicy(show, coercion.TypeBool, pl.Policy(), "", field+" hide_product", errors)
			if visible, ok := coerced.(bool); ok {
				item["HideProduct"] = !visible
			}
		}
	}

	return item
}

// applyDiscountPeriod expects a two-element list of datetimes. Anything
// else is an invalid period: a warning under the lenient policy, a
// field error under strict.
func (b *Builder) applyDiscountPeriod(item map[string]any, pl mapping.PriceList, idx *feed.Index, field string, discountCleared bool, errors *[]string) {
	period := b.resolvePriceValue(idx, pl.DiscountPeriodSource)
	if coercion.IsEmpty(period) {
		if pl.ClearDiscountOnMissing || discountCleared {
			item["UseDiscountDateSpan"] = false
		}
		return
	}

	if list, ok := period.([]any); ok && len(list) >= 2 {
		start := b.coerceWithPolicy(list[0], coercion.TypeDateTime, pl.Policy(), "", field+" discount_period", errors)
		end := b.coerceWithPolicy(list[1], coercion.TypeDateTime, pl.Policy(), "", field+" discount_period", errors)
		if start != nil && end != nil {
			item["UseDiscountDateSpan"] = true
			item["DiscountStartDate"] = start
			item["DiscountEndDate"] = end
			return
		}
		if pl.ClearDiscountOnMissing || discountCleared {
			item["UseDiscountDateSpan"] = false
		}
		return
	}

	msg := field + " discount_period: expected a list with start and end"
	if pl.Policy() == coercion.PolicyLenient {
		b.logger.Warn("invalid discount period, ignoring", "field", field)
	} else {
		*errors = append(*errors, msg)
	}
	if pl.ClearDiscountOnMissing || discountCleared {
		item["UseDiscountDateSpan"] = false
	}
}

// resolvePriceValue resolves a price-list source selector and unwraps
// the attribute value object when the selector points at one.
func (b *Builder) resolvePriceValue(idx *feed.Index, source string) any {
	sel := mapping.ParseSelector(source)
	value, attribute, found := idx.Resolve(sel)
	if !found {
		return nil
	}
	if attribute != nil && sel.Keyed() && len(sel.Path) == 0 {
		// The selector resolved to the whole attribute object; a
		// removed value reads as nil here.
		return attribute["value"]
	}
	return value
}

func isZeroNumber(v any) bool {
	switch t := v.(type) {
	case string:
		d, err := coercion.ParseDecimal(t)
		return err == nil && d.IsZero()
	case fmt.Stringer:
		d, err := coercion.ParseDecimal(t.String())
		return err == nil && d.IsZero()
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case coercion.Decimal:
		return t.IsZero()
	default:
		return false
	}
}
