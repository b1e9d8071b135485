package service

import (
	"sort"
	"strings"

	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
)

type aggregate struct {
	modal, min, max float64
	variety         string
	arrivalDate     string
	count           int
	markets         []string
}

// aggregateRecords averages each price field over its positive values. It
// reports false when no record carries a usable modal price.
func aggregateRecords(records []refdomain.RawRecord) (aggregate, bool) {
	if len(records) == 0 {
		return aggregate{}, false
	}

	modal, ok := meanPositive(records, func(r refdomain.RawRecord) refdomain.LooseNumber { return r.ModalPrice })
	if !ok {
		return aggregate{}, false
	}
	minPrice, _ := meanPositive(records, func(r refdomain.RawRecord) refdomain.LooseNumber { return r.MinPrice })
	maxPrice, _ := meanPositive(records, func(r refdomain.RawRecord) refdomain.LooseNumber { return r.MaxPrice })

	seen := map[string]struct{}{}
	markets := make([]string, 0, len(records))
	for _, r := range records {
		m := strings.TrimSpace(r.Market)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		markets = append(markets, m)
	}
	sort.Strings(markets)

	return aggregate{
		modal:       modal,
		min:         minPrice,
		max:         maxPrice,
		variety:     strings.TrimSpace(records[0].Variety),
		arrivalDate: strings.TrimSpace(records[0].ArrivalDate),
		count:       len(records),
		markets:     markets,
	}, true
}

func meanPositive(records []refdomain.RawRecord, field func(refdomain.RawRecord) refdomain.LooseNumber) (float64, bool) {
	var sum float64
	var n int
	for _, r := range records {
		if v, ok := field(r).Positive(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
