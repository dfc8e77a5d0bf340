package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/corehttp/httpd/pkg/errors"
)

// ServerOptions configures BuildServerConfig, covering spec.md §6's TLS
// fields (ssl_certificate_file, ssl_private_key_file, ssl_ca_file,
// ssl_verify_client).
type ServerOptions struct {
	CertFile     string
	KeyFile      string
	CAFile       string
	VerifyClient bool
	Profile      VersionProfile
}

// BuildServerConfig loads the certificate/key pair and, when configured,
// the client CA bundle, and returns a tls.Config ready for
// tls.NewListener. Cipher suites and version bounds are applied the same
// way the teacher's client-side ApplyVersionProfile/ApplyCipherSuites do,
// adapted from tls.Client to tls.Server usage.
func BuildServerConfig(opts ServerOptions) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
	if err != nil {
		return nil, errors.NewTLSError("loading certificate/key pair", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	profile := opts.Profile
	if profile.Min == 0 {
		profile = ProfileSecure
	}
	ApplyVersionProfile(cfg, profile)
	ApplyCipherSuites(cfg, profile.Min)

	if opts.VerifyClient {
		if opts.CAFile == "" {
			return nil, errors.NewValidationError("ssl_verify_client requires ssl_ca_file")
		}
		caCert, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, errors.NewTLSError("reading CA file", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.NewTLSError("parsing CA file", nil)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return cfg, nil
}
