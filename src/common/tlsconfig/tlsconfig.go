// Package tlsconfig builds client TLS configurations for the database
// connections of the replication bridge.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Config holds client TLS configuration for a store connection.
type Config struct {
	// Enabled determines if TLS should be used
	Enabled bool `yaml:"enabled" json:"enabled"`

	// CertFile is the path to the client certificate file for mutual TLS (PEM format, optional)
	CertFile string `yaml:"cert_file" json:"cert_file"`

	// KeyFile is the path to the client private key file for mutual TLS (PEM format, optional)
	KeyFile string `yaml:"key_file" json:"key_file"`

	// CACertFile is the path to the CA certificate used for server verification
	// (optional, system CAs used if empty)
	CACertFile string `yaml:"ca_cert_file" json:"ca_cert_file"`

	// MinVersion specifies the minimum TLS version: "1.0", "1.1", "1.2", "1.3".
	// Defaults to "1.2" when empty.
	MinVersion string `yaml:"min_version" json:"min_version" validate:"omitempty,oneof=1.0 1.1 1.2 1.3"`

	// InsecureSkipVerify disables verification of the server certificate chain.
	// WARNING: should only be true for testing purposes
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`

	// ServerName is used to verify the hostname on the returned certificates.
	// If empty, the hostname from the server address will be used.
	ServerName string `yaml:"server_name" json:"server_name"`
}

// BuildClientConfig creates a tls.Config for client use.
// It optionally loads CA certificates for server verification and client
// certificates for mutual TLS. Returns nil when TLS is not enabled.
func (c *Config) BuildClientConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}

	// #nosec G402 - MinVersion and InsecureSkipVerify are user-configurable with secure defaults
	config := &tls.Config{
		MinVersion:         c.getMinTLSVersion(),
		CipherSuites:       getSecureCipherSuites(),
		InsecureSkipVerify: c.InsecureSkipVerify,
		ServerName:         c.ServerName,
	}

	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate and key: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	} else if c.CertFile != "" || c.KeyFile != "" {
		return nil, fmt.Errorf("both cert_file and key_file must be provided for client authentication")
	}

	if c.CACertFile != "" {
		caCert, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}

		config.RootCAs = caCertPool
	}

	return config, nil
}

// BuildClientConfigIfEnabled is a nil-safe convenience for optional configs.
func BuildClientConfigIfEnabled(c *Config) (*tls.Config, error) {
	if c == nil || !c.Enabled {
		return nil, nil
	}
	return c.BuildClientConfig()
}

// getMinTLSVersion converts the string version to the tls constant.
// Defaults to TLS 1.2.
func (c *Config) getMinTLSVersion() uint16 {
	switch c.MinVersion {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// getSecureCipherSuites returns cipher suites providing forward secrecy and
// strong encryption.
func getSecureCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	}
}
