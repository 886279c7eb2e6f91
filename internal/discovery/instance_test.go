package discovery

import "testing"

func TestInstance_String(t *testing.T) {
	inst := &Instance{
		Name:     "mbproxy-gw",
		Hostname: "gateway.local.",
		IP:       "192.168.4.16",
		Port:     8502,
	}

	expected := "mbproxy mbproxy-gw (gateway.local.) at 192.168.4.16:8502"
	if inst.String() != expected {
		t.Errorf("Instance.String() = %v, want %v", inst.String(), expected)
	}
}

func TestInstance_ControlURL(t *testing.T) {
	tests := []struct {
		name     string
		inst     *Instance
		expected string
	}{
		{
			name:     "default path",
			inst:     &Instance{IP: "192.168.4.16", Port: 8502},
			expected: "ws://192.168.4.16:8502/control",
		},
		{
			name: "advertised path",
			inst: &Instance{
				IP:       "10.0.0.5",
				Port:     9000,
				Metadata: map[string]string{"path": "/ops"},
			},
			expected: "ws://10.0.0.5:9000/ops",
		},
		{
			name:     "IPv6",
			inst:     &Instance{IP: "fe80::1", Port: 8502},
			expected: "ws://[fe80::1]:8502/control",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inst.ControlURL(); got != tt.expected {
				t.Errorf("Instance.ControlURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestInstance_GetMetadata(t *testing.T) {
	inst := &Instance{Metadata: map[string]string{"target": "10.0.0.5:502"}}

	if got := inst.Target(); got != "10.0.0.5:502" {
		t.Errorf("Target() = %v, want 10.0.0.5:502", got)
	}
	if got := inst.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %v, want empty", got)
	}
	if got := (&Instance{}).GetMetadata("target"); got != "" {
		t.Errorf("GetMetadata on nil metadata = %v, want empty", got)
	}
}
