package base

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/ValentinKolb/mKV/rpc/common"
)

// ServerTLSConfig builds the TLS config of a server. It returns nil if TLS is disabled.
// If a CA file is configured, clients must present a certificate signed by it.
func ServerTLSConfig(conf common.TLSConf) (*tls.Config, error) {
	if !conf.Enabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(conf.CertFile, conf.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if conf.CAFile != "" {
		pool, err := loadCertPool(conf.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return cfg, nil
}

// ClientTLSConfig builds the TLS config of a client. It returns nil if TLS is disabled.
func ClientTLSConfig(conf common.TLSConf) (*tls.Config, error) {
	if !conf.ClientEnabled() {
		return nil, nil
	}

	cfg := &tls.Config{
		ServerName:         conf.Domain,
		InsecureSkipVerify: conf.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if conf.CAFile != "" {
		pool, err := loadCertPool(conf.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	if conf.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(conf.CertFile, conf.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

func loadCertPool(file string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", file)
	}
	return pool, nil
}
