package middleware

import (
	"net/http"
	"net/url"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"storefront/internal/medusa"
	"storefront/pkg/logger"
)

// CustomerAuth forwards the session's customer token to upstream calls.
// The backend signs the token; it is only inspected here so an expired
// token is dropped instead of failing every call that carries it.
func CustomerAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := SessionFrom(ctx)
			if sess.CustomerToken == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !TokenUsable(sess.CustomerToken, time.Now()) {
				logger.From(ctx).Infow("customer token expired, signing out")
				sess.SetCustomerToken("")
				next.ServeHTTP(w, r)
				return
			}
			if id := CustomerActorID(sess.CustomerToken); id != "" {
				ctx = logger.WithContext(ctx, logger.From(ctx).With("customer", id))
			}
			next.ServeHTTP(w, r.WithContext(medusa.WithCustomerToken(ctx, sess.CustomerToken)))
		})
	}
}

// TokenUsable reports whether raw parses as a JWT that has not expired at now.
func TokenUsable(raw string, now time.Time) bool {
	_, err := jwt.Parse([]byte(raw),
		jwt.WithVerify(false),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(30*time.Second),
	)
	return err == nil
}

// CustomerActorID returns the customer id carried in a backend token, or "".
func CustomerActorID(raw string) string {
	tok, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return ""
	}
	if v, ok := tok.Get("actor_id"); ok {
		s, _ := v.(string)
		return s
	}
	return ""
}

// RequireCustomer redirects anonymous visitors to loginPath, remembering
// where they were headed.
func RequireCustomer(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if medusa.CustomerToken(r.Context()) == "" {
				http.Redirect(w, r, loginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
