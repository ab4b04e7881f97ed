package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"storefront/internal/medusa"
	"storefront/internal/storefront"
	"storefront/pkg/logger"
	"storefront/pkg/middleware"
)

const homeProducts = 8

type homeData struct {
	Collections []medusa.Collection
	Products    []medusa.Product
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, sess := middleware.StoreFrom(ctx), middleware.SessionFrom(ctx)
	cols, err := s.svc.Collections(ctx, st)
	if err != nil {
		logger.From(ctx).Warnw("list collections", "err", err)
	}
	latest, err := s.svc.ListProducts(ctx, st, sess, storefront.ListParams{Page: 1, Limit: homeProducts})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "home", page{Title: st.Name, Data: homeData{Collections: cols, Products: latest.Products}})
}

type listingData struct {
	Heading    string
	Intro      string
	Query      string
	BaseURL    string
	Categories []medusa.Category
	Page       storefront.ProductPage
	Sorts      []sortOption
}

type sortOption struct {
	Value string
	Label string
}

var sortOptions = []sortOption{
	{storefront.SortLatest, "Latest arrivals"},
	{storefront.SortPriceAsc, "Price: Low to high"},
	{storefront.SortPriceDesc, "Price: High to low"},
}

// listing renders one page of products narrowed by p's filters.
func (s *Server) listing(w http.ResponseWriter, r *http.Request, data listingData, p storefront.ListParams) {
	ctx := r.Context()
	st, sess := middleware.StoreFrom(ctx), middleware.SessionFrom(ctx)
	q := r.URL.Query()
	p.Page, _ = strconv.Atoi(q.Get("page"))
	p.Sort = storefront.NormalizeSort(q.Get("sort"))
	res, err := s.svc.ListProducts(ctx, st, sess, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cats, err := s.svc.Categories(ctx, st)
	if err != nil {
		logger.From(ctx).Warnw("list categories", "err", err)
	}
	data.Page = res
	data.Categories = cats
	data.Sorts = sortOptions
	if data.BaseURL == "" {
		data.BaseURL = r.URL.Path
	}
	s.render(w, r, http.StatusOK, "store", page{Title: data.Heading, Data: data})
}

func (s *Server) storePage(w http.ResponseWriter, r *http.Request) {
	s.listing(w, r, listingData{Heading: "All products"}, storefront.ListParams{})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Redirect(w, r, "/store", http.StatusFound)
		return
	}
	s.listing(w, r, listingData{
		Heading: "Search results for \"" + q + "\"",
		Query:   q,
		BaseURL: "/search?q=" + url.QueryEscape(q),
	}, storefront.ListParams{Query: q})
}

func (s *Server) collection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	col, err := s.svc.Collection(ctx, middleware.StoreFrom(ctx), chi.URLParam(r, "handle"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.listing(w, r, listingData{Heading: col.Title}, storefront.ListParams{CollectionID: col.ID})
}

func (s *Server) category(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cat, err := s.svc.Category(ctx, middleware.StoreFrom(ctx), chi.URLParam(r, "handle"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.listing(w, r, listingData{Heading: cat.Name, Intro: cat.Description}, storefront.ListParams{CategoryID: cat.ID})
}

type productData struct {
	Product  medusa.Product
	Selected map[string]string
	Variant  *medusa.Variant
	Price    *medusa.CalculatedPrice
	InStock  bool
}

// product renders a product page. Options are chosen with query parameters
// named after the option id, e.g. ?opt_size=M.
func (s *Server) product(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.svc.Product(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), chi.URLParam(r, "handle"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	selected := map[string]string{}
	for _, opt := range p.Options {
		if v := q.Get(opt.ID); v != "" {
			selected[opt.ID] = v
		}
	}
	if len(selected) == 0 {
		selected = storefront.DefaultSelection(p)
	}
	d := productData{Product: p, Selected: selected, Variant: storefront.SelectVariant(p, selected)}
	if d.Variant != nil {
		d.Price = d.Variant.CalculatedPrice
		d.InStock = d.Variant.InStock()
	} else {
		d.Price = storefront.FromPrice(p)
	}
	s.render(w, r, http.StatusOK, "product", page{Title: p.Title, Data: d})
}
