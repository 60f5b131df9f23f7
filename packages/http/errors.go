package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
)

// classify maps a transport failure to an error kind. fallback is used for
// failures that carry no more specific signal.
func classify(ctx context.Context, err error, fallback errdef.Kind, op string) error {
	if err == nil {
		return nil
	}
	var classified *errdef.Error
	if errors.As(err, &classified) {
		return err
	}
	return errdef.Wrap(kindOf(ctx, err, fallback), err, op)
}

func kindOf(ctx context.Context, err error, fallback errdef.Kind) errdef.Kind {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return errdef.KindCanceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return errdef.KindTimeout
	case errors.Is(err, context.Canceled):
		return errdef.KindCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errdef.KindTimeout
	}

	if isTLSError(err) {
		return errdef.KindNetwork
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return errdef.KindNetwork
	}

	// a bare EOF means the peer accepted the connection and closed it
	// without sending a response
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || strings.Contains(err.Error(), "malformed HTTP") {
		return errdef.KindProtocol
	}

	return fallback
}

func isTLSError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		verification     *tls.CertificateVerificationError
		recordHeader     tls.RecordHeaderError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid) ||
		errors.As(err, &verification) ||
		errors.As(err, &recordHeader)
}
