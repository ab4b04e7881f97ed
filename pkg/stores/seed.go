package stores

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Definition is the on-disk / seed form of a store.
// STORE_SEED_JSON holds a JSON array of these; STORE_SEED_FILE and the admin
// import directory accept YAML or JSON documents.
type Definition struct {
	ID                   string `json:"id" yaml:"id"`
	Slug                 string `json:"slug" yaml:"slug"`
	Host                 string `json:"host" yaml:"host"`
	Name                 string `json:"name" yaml:"name"`
	BasePublicURL        string `json:"base_public_url" yaml:"base_public_url"`
	MedusaURL            string `json:"medusa_url" yaml:"medusa_url"`
	PublishableKey       string `json:"publishable_key" yaml:"publishable_key"`
	DefaultCountry       string `json:"default_country" yaml:"default_country"`
	StripePublishableKey string `json:"stripe_publishable_key" yaml:"stripe_publishable_key"`
	StripeSecretKey      string `json:"stripe_secret_key" yaml:"stripe_secret_key"`
}

func (d Definition) Store() Store {
	return Store{
		ID: d.ID, Slug: d.Slug, Host: d.Host, Name: d.Name, BasePublicURL: d.BasePublicURL,
		MedusaURL: d.MedusaURL, PublishableKey: d.PublishableKey, DefaultCountry: d.DefaultCountry,
		StripePublishableKey: d.StripePublishableKey, StripeSecretKey: d.StripeSecretKey,
	}.Normalize()
}

// ErrNoDefinitions is returned when a non-empty document holds no usable store.
var ErrNoDefinitions = errors.New("no valid store definitions")

// ParseDefinitions decodes a single definition or a list of them. yaml.v3 also
// accepts JSON input. Unknown keys are rejected so a mistyped file fails
// loudly instead of importing nothing. Entries without an id or host are
// skipped and logged.
func ParseDefinitions(b []byte, log *zap.SugaredLogger) ([]Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse store definitions: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var list []Definition
	switch doc.Content[0].Kind {
	case yaml.SequenceNode:
		if err := dec.Decode(&list); err != nil {
			return nil, fmt.Errorf("parse store definitions: %w", err)
		}
	case yaml.MappingNode:
		var one Definition
		if err := dec.Decode(&one); err != nil {
			return nil, fmt.Errorf("parse store definitions: %w", err)
		}
		list = []Definition{one}
	default:
		return nil, fmt.Errorf("parse store definitions: expected a mapping or a list")
	}
	return filterDefinitions(list, log)
}

// LoadDefinitionsFile reads definitions from a YAML or JSON file.
func LoadDefinitionsFile(path string, log *zap.SugaredLogger) ([]Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDefinitions(b, log.With("file", path))
}

// LoadDefinitionsDir walks dir and loads every .yaml/.yml/.json file.
func LoadDefinitionsDir(dir string, log *zap.SugaredLogger) ([]Definition, error) {
	if dir == "" {
		return nil, nil
	}
	out := []Definition{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}
		defs, err := LoadDefinitionsFile(path, log)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, defs...)
		return nil
	})
	return out, err
}

func parseSeedJSON(seed string, log *zap.SugaredLogger) ([]Definition, error) {
	dec := json.NewDecoder(strings.NewReader(seed))
	dec.DisallowUnknownFields()
	var defs []Definition
	if err := dec.Decode(&defs); err != nil {
		return nil, err
	}
	return filterDefinitions(defs, log)
}

func filterDefinitions(in []Definition, log *zap.SugaredLogger) ([]Definition, error) {
	out := make([]Definition, 0, len(in))
	for i, d := range in {
		if d.ID == "" || d.Host == "" {
			log.Warnw("store definition skipped: id and host are required", "index", i, "id", d.ID, "slug", d.Slug, "host", d.Host)
			continue
		}
		out = append(out, d)
	}
	if len(in) > 0 && len(out) == 0 {
		return nil, ErrNoDefinitions
	}
	return out, nil
}
