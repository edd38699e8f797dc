package processor

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// StripeConfig holds Stripe credentials.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	ProductID     string
}

// PayPalConfig holds PayPal credentials. TestMode selects the sandbox API.
type PayPalConfig struct {
	ClientID  string
	Secret    string
	WebhookID string
	ProductID string
	TestMode  bool
}

// SquareConfig holds Square credentials.
type SquareConfig struct {
	AccessToken     string
	SignatureKey    string
	LocationID      string
	NotificationURL string
	TestMode        bool
}

// FakeConfig enables the deterministic test double, used in development and
// end-to-end tests.
type FakeConfig struct {
	WebhookSecret string
}

// Config carries per-processor credentials. A nil block means the processor
// is not configured and requests for it fail fast.
type Config struct {
	Stripe *StripeConfig
	PayPal *PayPalConfig
	Square *SquareConfig
	Fake   *FakeConfig
}

// Registry resolves processor names to cached adapter instances. Adapters
// are stateless aside from short-lived token caching, so one instance per
// name is shared for the process lifetime. The registry is constructed once
// at startup and passed to callers; there is no package-level singleton.
type Registry struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]Processor
}

// NewRegistry creates a registry over the given per-processor configuration.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:    cfg,
		logger: logger,
		cache:  map[string]Processor{},
	}
}

// Get returns the adapter for a processor name, constructing it on first use.
// Unconfigured names fail with ErrCodeNotConfigured rather than a runtime
// vendor error.
func (r *Registry) Get(name string) (Processor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.cache[name]; ok {
		return p, nil
	}

	p, err := r.build(name)
	if err != nil {
		return nil, err
	}

	r.logger.Info("payment processor initialized", zap.String("processor", name))
	r.cache[name] = p
	return p, nil
}

func (r *Registry) build(name string) (Processor, error) {
	switch name {
	case "stripe":
		if c := r.cfg.Stripe; c != nil && c.SecretKey != "" {
			return NewStripeProcessor(c.SecretKey, c.WebhookSecret, c.ProductID), nil
		}
	case "paypal":
		if c := r.cfg.PayPal; c != nil && c.ClientID != "" {
			return NewPayPalProcessor(c.ClientID, c.Secret, c.WebhookID, c.ProductID, c.TestMode), nil
		}
	case "square":
		if c := r.cfg.Square; c != nil && c.AccessToken != "" {
			return NewSquareProcessor(c.AccessToken, c.SignatureKey, c.LocationID, c.NotificationURL, c.TestMode), nil
		}
	case "fake":
		if c := r.cfg.Fake; c != nil {
			return NewFakeProcessor(c.WebhookSecret), nil
		}
	default:
		return nil, NewError(name, ErrCodeNotConfigured, "unknown payment processor: "+name)
	}
	return nil, NewError(name, ErrCodeNotConfigured, "payment processor "+name+" is not configured")
}

// Configured lists the processor names that can currently be resolved, so
// the platform can hide unavailable payment methods.
func (r *Registry) Configured() []string {
	var names []string
	if c := r.cfg.Stripe; c != nil && c.SecretKey != "" {
		names = append(names, "stripe")
	}
	if c := r.cfg.PayPal; c != nil && c.ClientID != "" {
		names = append(names, "paypal")
	}
	if c := r.cfg.Square; c != nil && c.AccessToken != "" {
		names = append(names, "square")
	}
	if r.cfg.Fake != nil {
		names = append(names, "fake")
	}
	sort.Strings(names)
	return names
}

// ClearCache drops cached adapter instances, for test isolation.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[string]Processor{}
}
