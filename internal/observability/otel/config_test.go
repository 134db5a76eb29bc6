package otel

import "testing"

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled is always valid", Config{Enabled: false, Protocol: "bogus"}, false},
		{"http protocol", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 1.0}, false},
		{"grpc protocol", Config{Enabled: true, Protocol: ProtocolGRPC, SampleRatio: 0.5}, false},
		{"unknown protocol", Config{Enabled: true, Protocol: "udp", SampleRatio: 1.0}, true},
		{"ratio above one", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 1.5}, true},
		{"negative ratio", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: -0.1}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if cfg.Protocol != ProtocolHTTP {
		t.Errorf("protocol = %q", cfg.Protocol)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
