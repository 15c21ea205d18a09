package observability

import "testing"

func TestMetricLocationLabel(t *testing.T) {
	SetTrackedLocations([]string{"london,gb", "Tokyo,JP"})

	tests := []struct {
		name     string
		location string
		want     string
	}{
		{"tracked exact", "london,gb", "london,gb"},
		{"tracked case-insensitive", "LONDON,GB", "london,gb"},
		{"tracked with whitespace", " tokyo,jp ", "tokyo,jp"},
		{"untracked", "paris,fr", "other"},
		{"empty", "", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MetricLocationLabel(tt.location); got != tt.want {
				t.Errorf("MetricLocationLabel(%q) = %q, want %q", tt.location, got, tt.want)
			}
		})
	}
}

func TestMetricLocationLabel_NoAllowList(t *testing.T) {
	SetTrackedLocations(nil)

	if got := MetricLocationLabel("london,gb"); got != "other" {
		t.Errorf("MetricLocationLabel() = %q, want other with empty allow-list", got)
	}
}

func TestCircuitBreakerStateValue(t *testing.T) {
	for state := 0; state <= 2; state++ {
		if got := CircuitBreakerStateValue(state); got != float64(state) {
			t.Errorf("CircuitBreakerStateValue(%d) = %v, want %v", state, got, float64(state))
		}
	}
}
