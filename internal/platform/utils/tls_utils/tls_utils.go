package tls_utils

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	"github.com/RedHatInsights/console-link/internal/platform/logger"
)

var ErrNoCACerts = errors.New("no PEM certificates found in CA file")

type TlsConfigFunc func(*tls.Config) error

func WithCert(certFilePath string, certKeyPath string) TlsConfigFunc {
	return func(tlsConfig *tls.Config) error {
		logger.Log.Debug("TLS config - setting the client key pair")

		cert, err := tls.LoadX509KeyPair(certFilePath, certKeyPath)
		if err != nil {
			return err
		}

		tlsConfig.Certificates = []tls.Certificate{cert}

		return nil
	}
}

func WithCACerts(caCertFilePath string) TlsConfigFunc {
	return func(tlsConfig *tls.Config) error {
		logger.Log.Debug("TLS config - setting CA certs")

		pemCerts, err := os.ReadFile(caCertFilePath)
		if err != nil {
			return err
		}

		certpool := x509.NewCertPool()
		if !certpool.AppendCertsFromPEM(pemCerts) {
			return ErrNoCACerts
		}

		tlsConfig.RootCAs = certpool

		return nil
	}
}

func WithSkipVerify() TlsConfigFunc {
	return func(tlsConfig *tls.Config) error {
		logger.Log.Warn("TLS config - skipping server certificate verification")

		tlsConfig.InsecureSkipVerify = true

		return nil
	}
}

func NewTlsConfig(configOpts ...TlsConfigFunc) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	for _, opt := range configOpts {
		err := opt(tlsConfig)
		if err != nil {
			return nil, err
		}
	}

	return tlsConfig, nil
}

// FromFiles builds the option list for whichever of the files are configured.
func FromFiles(caCertFile string, certFile string, keyFile string, skipVerify bool) []TlsConfigFunc {
	var opts []TlsConfigFunc

	if caCertFile != "" {
		opts = append(opts, WithCACerts(caCertFile))
	}

	if certFile != "" && keyFile != "" {
		opts = append(opts, WithCert(certFile, keyFile))
	}

	if skipVerify {
		opts = append(opts, WithSkipVerify())
	}

	return opts
}
