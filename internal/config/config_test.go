package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseRiskModes(t *testing.T) {
	modes, err := parseRiskModes("conservative:5,balanced:25,aggressive:100")
	if err != nil {
		t.Fatalf("parseRiskModes: %v", err)
	}
	want := map[string]float64{"conservative": 5, "balanced": 25, "aggressive": 100}
	if len(modes) != len(want) {
		t.Fatalf("parsed %d modes, want %d", len(modes), len(want))
	}
	for name, lev := range want {
		if modes[name] != lev {
			t.Errorf("mode %q = %v, want %v", name, modes[name], lev)
		}
	}

	// Whitespace around entries is tolerated.
	modes, err = parseRiskModes(" safe : 2 , wild : 50 ")
	if err != nil {
		t.Fatalf("parseRiskModes with spaces: %v", err)
	}
	if modes["safe"] != 2 || modes["wild"] != 50 {
		t.Errorf("spaced parse = %v", modes)
	}

	for _, bad := range []string{"nocolonhere", "name:abc", "a:1,b"} {
		if _, err := parseRiskModes(bad); err == nil {
			t.Errorf("parseRiskModes(%q) should fail", bad)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, b ,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitCSV = %v, want [a b c]", got)
	}
	if splitCSV("  ") != nil {
		t.Error("blank input should return nil")
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		JWT:    JWTConfig{Secret: "test-secret", SessionTTL: 12 * time.Hour},
		Price: PriceConfig{
			Mode:          "synthetic",
			BinanceWeight: 50,
			BybitWeight:   30,
			OKXWeight:     20,
		},
		Engine: EngineConfig{
			StartingBalance: 10000,
			Markets:         []string{"BTC-USD"},
			RiskModes:       map[string]float64{"balanced": 25},
			LeverageMin:     1,
			LeverageMax:     200,
		},
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET"},
		{"bad feed mode", func(c *Config) { c.Price.Mode = "replay" }, "PRICE_FEED_MODE"},
		{"weights off", func(c *Config) { c.Price.OKXWeight = 25 }, "sum to 100"},
		{"zero balance", func(c *Config) { c.Engine.StartingBalance = 0 }, "STARTING_BALANCE"},
		{"no markets", func(c *Config) { c.Engine.Markets = nil }, "ENGINE_MARKETS"},
		{"inverted leverage range", func(c *Config) { c.Engine.LeverageMin = 300 }, "leverage range"},
		{"no risk modes", func(c *Config) { c.Engine.RiskModes = nil }, "ENGINE_RISK_MODES"},
		{"mode outside range", func(c *Config) { c.Engine.RiskModes = map[string]float64{"x": 500} }, "outside the configured range"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: Validate() = nil, want error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantMsg) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.wantMsg)
		}
	}
}

func TestValidateJoinsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.Secret = ""
	cfg.Engine.Markets = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected joined errors")
	}
	for _, want := range []string{"JWT_SECRET", "ENGINE_MARKETS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q missing %q", err, want)
		}
	}
}
