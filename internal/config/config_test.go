package config

import (
	"os"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestGetEnvAsFloatOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal float64
		expected   float64
	}{
		{"parses float", "TEST_FLOAT_1", "72.5", 80, 72.5},
		{"parses integer text", "TEST_FLOAT_2", "3", 5, 3},
		{"uses default for empty", "TEST_FLOAT_3", "", 5, 5},
		{"uses default for garbage", "TEST_FLOAT_4", "high", 80, 80},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsFloatOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestLoad_DefaultsAndPolicy(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("POLICY_STREAK_LENGTH", "")
	t.Setenv("POLICY_HIGH_SCORE_PERCENT", "")

	cfg := Load()
	if cfg.StoreDriver != StoreDriverSQLite {
		t.Errorf("Expected sqlite driver by default, got %q", cfg.StoreDriver)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("Expected no database URL outside postgres mode, got %q", cfg.DatabaseURL)
	}

	p, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Expected default policy to be valid: %v", err)
	}
	if p.HighScorePercent != 80 || p.LowScorePercent != 50 || p.StreakLength != 3 || p.TrendBand != 5 || p.BeginnerCeiling != 40 {
		t.Errorf("Unexpected default policy: %+v", p)
	}
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when DATABASE_URL is missing for postgres")
		}
	}()
	Load()
}

func TestPolicy_RejectsInvertedThresholds(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("POLICY_HIGH_SCORE_PERCENT", "40")
	t.Setenv("POLICY_LOW_SCORE_PERCENT", "60")

	cfg := Load()
	if _, err := cfg.Policy(); err == nil {
		t.Error("Expected error for low threshold above high threshold")
	}
}
