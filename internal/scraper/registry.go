package scraper

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-verifier/internal/config"
)

// Spec is what a factory receives for one configured scraper.
type Spec struct {
	// Name is the display name override. Empty means the factory default.
	Name string
	// Options is the free-form options block from the config file.
	Options map[string]any
	// Transport replaces the HTTP transport of network-backed scrapers.
	Transport http.RoundTripper
}

// NameOr returns the display name, or def when none was configured.
func (s Spec) NameOr(def string) string {
	if n := strings.TrimSpace(s.Name); n != "" {
		return n
	}
	return def
}

// Decode copies the options block into out, a pointer to an options struct
// with mapstructure tags. Unknown keys are rejected.
func (s Spec) Decode(out any) error {
	if len(s.Options) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return eris.Wrap(err, "scraper: options decoder")
	}
	if err := dec.Decode(s.Options); err != nil {
		return eris.Wrapf(config.ErrConfiguration, "scraper: options for %q: %v", s.Name, err)
	}
	return nil
}

// Factory constructs a scraper from its spec.
type Factory func(spec Spec) (Scraper, error)

// Registry maps stable class keys to scraper factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}
}

// Register adds a factory under key. Registering a key twice is an error.
func (r *Registry) Register(key string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; ok {
		return eris.Errorf("scraper: %q already registered", key)
	}
	if _, ok := r.aliases[key]; ok {
		return eris.Errorf("scraper: %q already registered as an alias", key)
	}
	r.factories[key] = f
	r.order = append(r.order, key)
	return nil
}

// Alias makes alias resolve to the registered key.
func (r *Registry) Alias(alias, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; !ok {
		return eris.Errorf("scraper: alias %q targets unknown key %q", alias, key)
	}
	if _, ok := r.factories[alias]; ok {
		return eris.Errorf("scraper: alias %q shadows a registered key", alias)
	}
	r.aliases[alias] = key
	return nil
}

// Resolve returns the canonical key for class, following aliases.
func (r *Registry) Resolve(class string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	class = strings.TrimSpace(class)
	if _, ok := r.factories[class]; ok {
		return class, true
	}
	if key, ok := r.aliases[class]; ok {
		return key, true
	}
	return "", false
}

// Build constructs the scraper registered under class.
func (r *Registry) Build(class string, spec Spec) (Scraper, error) {
	key, ok := r.Resolve(class)
	if !ok {
		return nil, eris.Wrapf(config.ErrConfiguration, "scraper: unknown scraper class %q", class)
	}
	r.mu.RLock()
	f := r.factories[key]
	r.mu.RUnlock()

	s, err := f(spec)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: build %q", key)
	}
	return s, nil
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Aliases returns the alias names pointing at key, sorted.
func (r *Registry) Aliases(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for alias, target := range r.aliases {
		if target == key {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a registry holding the built-in scrapers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, b := range []struct {
		key     string
		factory Factory
		aliases []string
	}{
		{EchoKey, NewEcho, []string{"lead_verifier.scrapers.sample.EchoScraper"}},
		{WebsiteKey, NewWebsite, nil},
		{TruePeopleSearchKey, NewTruePeopleSearch, []string{"lead_verifier.scrapers.true_people_search.TruePeopleSearchScraper"}},
	} {
		if err := r.Register(b.key, b.factory); err != nil {
			panic(err)
		}
		for _, a := range b.aliases {
			if err := r.Alias(a, b.key); err != nil {
				panic(err)
			}
		}
	}
	return r
}
