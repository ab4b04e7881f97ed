package stores

import "strings"

// Store is one storefront served by this process, selected by request host.
type Store struct {
	ID                   string // uuid
	Slug                 string // short name (acme)
	Host                 string // primary host (shop.acme.com)
	Name                 string
	BasePublicURL        string
	MedusaURL            string // commerce backend base URL
	PublishableKey       string // x-publishable-api-key
	DefaultCountry       string // iso-2, lower case
	StripePublishableKey string
	StripeSecretKey      string // decrypted in memory only
}

// Normalize lower-cases country codes and trims URLs.
func (s Store) Normalize() Store {
	s.DefaultCountry = strings.ToLower(strings.TrimSpace(s.DefaultCountry))
	s.MedusaURL = strings.TrimRight(strings.TrimSpace(s.MedusaURL), "/")
	s.BasePublicURL = strings.TrimRight(strings.TrimSpace(s.BasePublicURL), "/")
	if s.Name == "" {
		s.Name = s.Slug
	}
	return s
}

// HasStripe reports whether server-side payment verification is possible.
func (s Store) HasStripe() bool { return s.StripeSecretKey != "" }
