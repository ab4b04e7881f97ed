package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/medusa"
	"storefront/internal/storefront"
	"storefront/pkg/logger"
	"storefront/pkg/middleware"
	"storefront/pkg/money"
	"storefront/pkg/sessions"
	"storefront/pkg/stores"
)

//go:embed templates/*.html
var templateFS embed.FS

// page is the data every template receives.
type page struct {
	Title     string
	Store     stores.Store
	Path      string
	Cart      *medusa.Cart
	CartCount int
	SignedIn  bool
	Country   string
	Countries []medusa.Country
	Toasts    []sessions.Toast
	Data      any
}

var funcs = template.FuncMap{
	"money": func(amount decimal.Decimal, code string) string { return money.Format(amount, code) },
	"price": func(p *medusa.CalculatedPrice) string {
		if p == nil {
			return ""
		}
		return money.Format(p.CalculatedAmount, p.CurrencyCode)
	},
	"onSale": func(p *medusa.CalculatedPrice) bool {
		return p != nil && p.OriginalAmount.GreaterThan(p.CalculatedAmount)
	},
	"discount": func(p *medusa.CalculatedPrice) int64 {
		if p == nil {
			return 0
		}
		return money.DiscountPercent(p.OriginalAmount, p.CalculatedAmount)
	},
	"fromPrice":   storefront.FromPrice,
	"description": renderDescription,
	"add":         func(a, b int) int { return a + b },
	"fields": func(prefix string, addr any) map[string]any {
		return map[string]any{"Prefix": prefix, "Address": addr}
	},
	"upper":       strings.ToUpper,
	"stepDone": func(step, current storefront.Step) bool {
		for _, s := range storefront.Steps {
			if s == current {
				return false
			}
			if s == step {
				return true
			}
		}
		return false
	},
	"pageURL": func(base, sort string, n int) string {
		u, err := url.Parse(base)
		if err != nil {
			return base
		}
		q := u.Query()
		q.Set("page", strconv.Itoa(n))
		if sort != "" && sort != storefront.SortLatest {
			q.Set("sort", sort)
		}
		u.RawQuery = q.Encode()
		return u.String()
	},
}

// views holds one template set per page, each sharing the layout.
type views struct {
	pages map[string]*template.Template
}

func parseViews() (*views, error) {
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	v := &views{pages: map[string]*template.Template{}}
	for _, name := range names {
		key := strings.TrimSuffix(path.Base(name), ".html")
		if key == "layout" {
			continue
		}
		t, err := template.Must(base.Clone()).ParseFS(templateFS, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		v.pages[key] = t
	}
	return v, nil
}

func (v *views) execute(w *bytes.Buffer, name string, p page) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	return t.ExecuteTemplate(w, "layout.html", p)
}

// render fills in the layout data and writes the page. Pages that already
// loaded the cart pass it in p.Cart to save an upstream call.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	ctx := r.Context()
	log := logger.From(ctx)
	st := middleware.StoreFrom(ctx)
	sess := middleware.SessionFrom(ctx)

	p.Store = st
	p.Path = r.URL.RequestURI()
	p.SignedIn = medusa.CustomerToken(ctx) != ""
	p.Country = storefront.Country(st, sess)
	if p.Cart == nil && sess.CartID != "" {
		cart, err := s.svc.Current(ctx, st, sess)
		if err != nil {
			log.Warnw("load cart for layout", "err", err)
		}
		p.Cart = cart
	}
	p.CartCount = storefront.ItemCount(p.Cart)
	if countries, err := s.svc.Regions().Countries(ctx, st); err == nil {
		p.Countries = countries
	} else {
		log.Warnw("load countries", "err", err)
	}
	p.Toasts = sess.Drain()

	var buf bytes.Buffer
	if err := s.views.execute(&buf, name, p); err != nil {
		log.Errorw("render", "view", name, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorPage struct {
	Status  int
	Message string
}

// fail renders the error page for err, or sends anonymous visitors to login.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storefront.ErrNotAuthenticated):
		http.Redirect(w, r, "/account/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return
	case errors.Is(err, storefront.ErrNotFound), medusa.IsNotFound(err):
		s.render(w, r, http.StatusNotFound, "error", page{Title: "Not found",
			Data: errorPage{Status: http.StatusNotFound, Message: "We couldn't find that page."}})
		return
	}
	logger.From(r.Context()).Errorw("request failed", "path", r.URL.Path, "err", err)
	s.render(w, r, http.StatusInternalServerError, "error", page{Title: "Something went wrong",
		Data: errorPage{Status: http.StatusInternalServerError, Message: storefront.UserMessage(err)}})
}

// toast queues a message for the next page view.
func toast(r *http.Request, level, msg string) {
	middleware.SessionFrom(r.Context()).Push(level, msg)
}

// redirect finishes a POST with a 303 so reloads do not resubmit.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// localPath returns target when it is a path on this site, else fallback.
func localPath(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

// back returns the same-site page the form was posted from.
func back(r *http.Request, fallback string) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host != r.Host || ref.Path == "" {
		return fallback
	}
	return localPath(ref.RequestURI(), fallback)
}
