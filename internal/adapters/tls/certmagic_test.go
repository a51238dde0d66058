package tls

import (
	"testing"

	"github.com/Tqy43/ZSQL-gis/internal/config"
)

func TestValidate(t *testing.T) {
	dns := config.TLSDNSConfig{SubscriptionID: "sub", ResourceGroupName: "rg"}

	tests := []struct {
		name    string
		cfg     config.TLSConfig
		wantErr bool
	}{
		{"complete", config.TLSConfig{Domains: []string{"map.example.com"}, Email: "ops@example.com", DNS: dns}, false},
		{"no domains", config.TLSConfig{Email: "ops@example.com", DNS: dns}, true},
		{"no email", config.TLSConfig{Domains: []string{"map.example.com"}, DNS: dns}, true},
		{"no dns zone", config.TLSConfig{Domains: []string{"map.example.com"}, Email: "ops@example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validate(tt.cfg); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDNSProvider(t *testing.T) {
	p := dnsProvider(config.TLSDNSConfig{SubscriptionID: "sub", ResourceGroupName: "rg", ClientID: "client"})
	if p.SubscriptionId != "sub" || p.ResourceGroupName != "rg" || p.ClientId != "client" {
		t.Errorf("provider = %+v", p)
	}
}
