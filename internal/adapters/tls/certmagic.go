// Package tls obtains and renews certificates for the HTTP API with
// CertMagic, answering ACME DNS-01 challenges through Azure DNS.
package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"

	"github.com/Tqy43/ZSQL-gis/internal/config"
)

// Manager holds the TLS configuration produced by CertMagic.
type Manager struct {
	domains   []string
	logger    *slog.Logger
	tlsConfig *tls.Config
}

// New configures the default CertMagic instance for the given domains.
// Certificates are obtained in the background; see ManageCertificates to
// block until they are available.
func New(cfg config.TLSConfig, logger *slog.Logger) (*Manager, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = cfg.Email
	if cfg.Staging {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}
	if cfg.CacheDir != "" {
		certmagic.Default.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}
	certmagic.DefaultACME.DNS01Solver = &certmagic.DNS01Solver{
		DNSManager: certmagic.DNSManager{DNSProvider: dnsProvider(cfg.DNS)},
	}

	tlsConfig, err := certmagic.TLS(cfg.Domains)
	if err != nil {
		return nil, fmt.Errorf("configuring TLS: %w", err)
	}
	tlsConfig.MinVersion = tls.VersionTLS12

	logger.Info("TLS configured", "domains", cfg.Domains, "staging", cfg.Staging)
	return &Manager{domains: cfg.Domains, logger: logger, tlsConfig: tlsConfig}, nil
}

func validate(cfg config.TLSConfig) error {
	if len(cfg.Domains) == 0 {
		return errors.New("TLS enabled but no domains specified")
	}
	if cfg.Email == "" {
		return errors.New("TLS enabled but no email specified")
	}
	if cfg.DNS.SubscriptionID == "" || cfg.DNS.ResourceGroupName == "" {
		return errors.New("TLS enabled but Azure DNS subscription or resource group missing")
	}
	return nil
}

// dnsProvider maps the DNS settings to the Azure libdns provider. An empty
// client ID selects the system assigned managed identity.
func dnsProvider(cfg config.TLSDNSConfig) *azure.Provider {
	return &azure.Provider{
		SubscriptionId:    cfg.SubscriptionID,
		ResourceGroupName: cfg.ResourceGroupName,
		ClientId:          cfg.ClientID,
	}
}

// TLSConfig returns the configuration to serve with.
func (m *Manager) TLSConfig() *tls.Config {
	return m.tlsConfig
}

// ManageCertificates obtains certificates for every domain before returning.
func (m *Manager) ManageCertificates(ctx context.Context) error {
	m.logger.Info("obtaining certificates", "domains", m.domains)
	if err := certmagic.ManageSync(ctx, m.domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}
	m.logger.Info("certificates obtained")
	return nil
}
