package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"storefront/pkg/logger"
	"storefront/pkg/sessions"
)

type ctxSessionKey struct{}

// SessionOptions configure the session cookie.
type SessionOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	// HashKey signs the cookie value; unsigned when empty.
	HashKey []byte
}

// Session loads the visitor session named by the cookie, creating one when
// absent, and persists it after the handler returns if it changed.
// Sessions are scoped per store so one cookie never leaks carts across hosts.
func Session(store sessions.Store, opts SessionOptions) func(http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = "sf_session"
	}
	var codec *securecookie.SecureCookie
	if len(opts.HashKey) > 0 {
		codec = securecookie.New(opts.HashKey, nil)
		codec.MaxAge(int(opts.TTL / time.Second))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/healthz", "/ping", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			log := logger.From(ctx)
			prefix := StoreFrom(ctx).ID + ":"

			var sess *sessions.Session
			if id := readSessionID(r, opts.CookieName, codec); id != "" {
				s, err := store.Get(ctx, prefix+id)
				switch {
				case err == nil:
					s.ID = id
					sess = s
				case !errors.Is(err, sessions.ErrNotFound):
					log.Warnw("session load", "err", err)
				}
			}
			isNew := sess == nil
			if isNew {
				sess = sessions.New()
			}
			cw := &cookieWriter{ResponseWriter: w, set: func() {
				value := sess.ID
				if codec != nil {
					if v, err := codec.Encode(opts.CookieName, sess.ID); err == nil {
						value = v
					} else {
						log.Errorw("session cookie encode", "err", err)
					}
				}
				http.SetCookie(w, &http.Cookie{
					Name:     opts.CookieName,
					Value:    value,
					Path:     "/",
					MaxAge:   int(opts.TTL / time.Second),
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}}

			next.ServeHTTP(cw, r.WithContext(context.WithValue(ctx, ctxSessionKey{}, sess)))
			cw.setCookie()

			if old := sess.Replaced(); old != "" {
				if err := store.Delete(context.WithoutCancel(ctx), prefix+old); err != nil {
					log.Warnw("session delete", "err", err)
				}
			}
			if !sess.Dirty() || (isNew && sess.IsZero()) {
				return
			}
			saved := *sess
			saved.ID = prefix + sess.ID
			if err := store.Save(context.WithoutCancel(ctx), &saved); err != nil {
				log.Errorw("session save", "err", err)
				return
			}
			sess.Clean()
		})
	}
}

// cookieWriter sets the session cookie right before the response headers go
// out, so a handler that regenerates the session id still sends the new one.
type cookieWriter struct {
	http.ResponseWriter
	set  func()
	done bool
}

func (c *cookieWriter) setCookie() {
	if !c.done {
		c.done = true
		c.set()
	}
}

func (c *cookieWriter) WriteHeader(code int) {
	c.setCookie()
	c.ResponseWriter.WriteHeader(code)
}

func (c *cookieWriter) Write(b []byte) (int, error) {
	c.setCookie()
	return c.ResponseWriter.Write(b)
}

func (c *cookieWriter) Unwrap() http.ResponseWriter { return c.ResponseWriter }

func readSessionID(r *http.Request, name string, codec *securecookie.SecureCookie) string {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return ""
	}
	if codec == nil {
		return c.Value
	}
	var id string
	if err := codec.Decode(name, c.Value, &id); err != nil {
		return ""
	}
	return id
}

// WithSessionContext attaches s to ctx.
func WithSessionContext(ctx context.Context, s *sessions.Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey{}, s)
}

// SessionFrom returns the request session. Outside the Session middleware it
// returns a throwaway session so callers never need a nil check.
func SessionFrom(ctx context.Context) *sessions.Session {
	if v, ok := ctx.Value(ctxSessionKey{}).(*sessions.Session); ok && v != nil {
		return v
	}
	return sessions.New()
}
