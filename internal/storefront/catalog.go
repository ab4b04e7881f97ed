package storefront

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"storefront/internal/medusa"
	"storefront/pkg/money"
	"storefront/pkg/sessions"
	"storefront/pkg/stores"
)

const PageSize = 12

// Product list orderings.
const (
	SortLatest    = "created_at"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// NormalizeSort maps unknown values to SortLatest.
func NormalizeSort(v string) string {
	switch v {
	case SortPriceAsc, SortPriceDesc:
		return v
	}
	return SortLatest
}

type ListParams struct {
	Page         int // 1-based
	Sort         string
	CollectionID string
	CategoryID   string
	Query        string
	Limit        int // defaults to PageSize
}

type ProductPage struct {
	Products   []medusa.Product
	Page       int
	TotalPages int
	Count      int
	Sort       string
}

func (p ProductPage) HasPrev() bool { return p.Page > 1 }
func (p ProductPage) HasNext() bool { return p.Page < p.TotalPages }

// ListProducts returns one page of products priced for the visitor's region.
// Price orderings apply within the page; the backend only orders by columns.
func (s *Service) ListProducts(ctx context.Context, st stores.Store, sess *sessions.Session, p ListParams) (ProductPage, error) {
	region, err := s.Region(ctx, st, sess)
	if err != nil {
		return ProductPage{}, err
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = PageSize
	}
	p.Sort = NormalizeSort(p.Sort)
	q := medusa.ProductQuery{
		Limit:    p.Limit,
		Offset:   (p.Page - 1) * p.Limit,
		RegionID: region.ID,
		Q:        p.Query,
		Order:    "-created_at",
	}
	if p.CollectionID != "" {
		q.CollectionIDs = []string{p.CollectionID}
	}
	if p.CategoryID != "" {
		q.CategoryIDs = []string{p.CategoryID}
	}
	list, err := s.client(st).ListProducts(ctx, q)
	if err != nil {
		return ProductPage{}, err
	}
	SortProducts(list.Products, p.Sort)
	pages := (list.Count + p.Limit - 1) / p.Limit
	if pages < 1 {
		pages = 1
	}
	return ProductPage{Products: list.Products, Page: p.Page, TotalPages: pages, Count: list.Count, Sort: p.Sort}, nil
}

// SortProducts orders products in place by cheapest variant price.
// Products without a price sort last in both directions.
func SortProducts(list []medusa.Product, order string) {
	if order != SortPriceAsc && order != SortPriceDesc {
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, aok := cheapest(list[i])
		b, bok := cheapest(list[j])
		if aok != bok {
			return aok
		}
		if order == SortPriceAsc {
			return a.LessThan(b)
		}
		return a.GreaterThan(b)
	})
}

func cheapest(p medusa.Product) (decimal.Decimal, bool) {
	fp := FromPrice(p)
	if fp == nil {
		return decimal.Zero, false
	}
	return fp.CalculatedAmount, true
}

// FromPrice returns the cheapest calculated variant price, shown as "from" on cards.
func FromPrice(p medusa.Product) *medusa.CalculatedPrice {
	var amounts []decimal.Decimal
	var prices []*medusa.CalculatedPrice
	for i := range p.Variants {
		if cp := p.Variants[i].CalculatedPrice; cp != nil {
			amounts = append(amounts, cp.CalculatedAmount)
			prices = append(prices, cp)
		}
	}
	low, ok := money.Min(amounts...)
	if !ok {
		return nil
	}
	for _, cp := range prices {
		if cp.CalculatedAmount.Equal(low) {
			return cp
		}
	}
	return nil
}

// Product fetches a product by handle with region pricing.
func (s *Service) Product(ctx context.Context, st stores.Store, sess *sessions.Session, handle string) (medusa.Product, error) {
	region, err := s.Region(ctx, st, sess)
	if err != nil {
		return medusa.Product{}, err
	}
	p, err := s.client(st).ProductByHandle(ctx, handle, region.ID)
	return p, notFound(err, "product "+handle)
}

// SelectVariant returns the variant whose option values match selected
// (option id -> value). With no selection a single-variant product yields
// its only variant; otherwise nil until every option is chosen.
func SelectVariant(p medusa.Product, selected map[string]string) *medusa.Variant {
	if len(p.Variants) == 1 && len(p.Options) <= 1 && len(selected) == 0 {
		return &p.Variants[0]
	}
	if len(selected) < len(p.Options) {
		return nil
	}
	for i := range p.Variants {
		v := &p.Variants[i]
		match := true
		for _, opt := range p.Options {
			if v.OptionValueFor(opt.ID) != selected[opt.ID] {
				match = false
				break
			}
		}
		if match {
			return v
		}
	}
	return nil
}

// DefaultSelection picks the options of the first in-stock variant.
func DefaultSelection(p medusa.Product) map[string]string {
	sel := map[string]string{}
	if len(p.Variants) == 0 {
		return sel
	}
	v := p.Variants[0]
	for _, cand := range p.Variants {
		if cand.InStock() {
			v = cand
			break
		}
	}
	for _, opt := range p.Options {
		if val := v.OptionValueFor(opt.ID); val != "" {
			sel[opt.ID] = val
		}
	}
	return sel
}

func (s *Service) Collections(ctx context.Context, st stores.Store) ([]medusa.Collection, error) {
	list, err := s.client(st).ListCollections(ctx, 100, 0)
	return list.Collections, err
}

func (s *Service) Collection(ctx context.Context, st stores.Store, handle string) (medusa.Collection, error) {
	c, err := s.client(st).CollectionByHandle(ctx, handle)
	return c, notFound(err, "collection "+handle)
}

func (s *Service) Categories(ctx context.Context, st stores.Store) ([]medusa.Category, error) {
	list, err := s.client(st).ListCategories(ctx, 100)
	return list.Categories, err
}

func (s *Service) Category(ctx context.Context, st stores.Store, handle string) (medusa.Category, error) {
	c, err := s.client(st).CategoryByHandle(ctx, handle)
	return c, notFound(err, "category "+handle)
}
