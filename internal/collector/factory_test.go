package collector

import (
	"testing"

	"github.com/jethomasphd/thresh/internal/config"
)

func TestFactoryFallsBackToPublic(t *testing.T) {
	factory := NewFactory(config.Settings{RedditUserAgent: "thresh-test"}, nil, nil)

	got := factory.Collector()
	if _, ok := got.(*PublicClient); !ok {
		t.Fatalf("Collector without credentials = %T, want *PublicClient", got)
	}

	// Subsequent calls reuse the shared instance.
	if factory.Collector() != got {
		t.Error("Collector built a second backend instead of reusing the shared one")
	}
}

func TestFactorySelectsAPIWithCredentials(t *testing.T) {
	factory := NewFactory(config.Settings{
		RedditClientID:     "id",
		RedditClientSecret: "secret",
		RedditUserAgent:    "thresh-test",
	}, nil, nil)

	got := factory.Collector()
	if _, ok := got.(*APIClient); !ok {
		t.Fatalf("Collector with credentials = %T, want *APIClient", got)
	}
}

func TestFactoryReset(t *testing.T) {
	factory := NewFactory(config.Settings{}, nil, nil)

	first := factory.Collector()
	if _, ok := first.(*PublicClient); !ok {
		t.Fatalf("initial backend = %T, want *PublicClient", first)
	}

	// Credentials arriving at runtime switch the backend on the next build.
	factory.Reset(config.Settings{
		RedditClientID:     "id",
		RedditClientSecret: "secret",
		RedditUserAgent:    "thresh-test",
	})
	second := factory.Collector()
	if first == second {
		t.Fatal("Reset did not drop the cached backend")
	}
	if _, ok := second.(*APIClient); !ok {
		t.Errorf("backend after credential reset = %T, want *APIClient", second)
	}
}
