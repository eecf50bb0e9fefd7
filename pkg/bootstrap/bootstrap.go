/*
Package bootstrap reads the LwM2M bootstrap configuration provisioned on a
UICC.

The configuration lives in a file of the PKCS#15 application, reached through
its directories:

	open channel
	select PKCS#15 application
	read EF(ODF) 5031       -> path of EF(DODF)
	read EF(DODF)           -> path of the bootstrap object
	read bootstrap file     -> LwM2M TLV bytes
	close channel

The logical channel is closed whatever happens after it was opened, with a
buffer of its own so the bytes already read are kept.
*/
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gregLibert/sim-bootstrap/pkg/csim"
	"github.com/gregLibert/sim-bootstrap/pkg/iso7816"
	"github.com/gregLibert/sim-bootstrap/pkg/pkcs15"
)

// ErrNotFound is returned when a directory file holds no usable entry.
var ErrNotFound = errors.New("bootstrap: entry not found")

// PathDecoder extracts the next file path from a directory file.
type PathDecoder func(data []byte) (pkcs15.Path, bool)

// Reader retrieves the bootstrap blob. It is not safe for concurrent use.
type Reader struct {
	session *csim.Session
	logger  *slog.Logger
	metrics *Metrics

	aid        []byte
	decodeODF  PathDecoder
	decodeDODF PathDecoder

	sessionOpts []csim.Option
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger of the reader and of its CSIM session.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = l
		r.sessionOpts = append(r.sessionOpts, csim.WithLogger(l))
	}
}

// WithMetrics records read outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Reader) { r.metrics = m }
}

// WithExchangeMetrics records every AT+CSIM exchange in m.
func WithExchangeMetrics(m *csim.Metrics) Option {
	return func(r *Reader) { r.sessionOpts = append(r.sessionOpts, csim.WithMetrics(m)) }
}

// WithApplicationID selects another application than PKCS#15.
func WithApplicationID(aid []byte) Option {
	return func(r *Reader) { r.aid = aid }
}

// WithPathDecoders replaces the EF(ODF) and EF(DODF) decoders.
func WithPathDecoders(odf, dodf PathDecoder) Option {
	return func(r *Reader) {
		r.decodeODF = odf
		r.decodeDODF = dodf
	}
}

// NewReader returns a reader sending its commands through modem.
func NewReader(modem csim.Modem, opts ...Option) *Reader {
	r := &Reader{
		logger:     slog.Default(),
		aid:        pkcs15.ApplicationID,
		decodeODF:  pkcs15.DecodeODFPath,
		decodeDODF: pkcs15.DecodeDODFPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.session = csim.NewSession(modem, r.sessionOpts...)
	return r
}

// Read stores the bootstrap blob at the start of p and returns its length.
//
// p is also the exchange buffer: its size bounds the AT command text and the
// reply hex. Use at least csim.RecordBufferMax bytes to read a full 256 byte
// record; smaller buffers read (len(p)-4)/2 bytes.
//
// An EF(ODF) or EF(DODF) selected without FCP, or read back empty, ends the
// walk with (0, nil).
//
// When the channel cannot be opened nothing else is sent. Otherwise the
// channel is closed exactly once; a close failure is returned only when the
// read itself succeeded.
func (r *Reader) Read(ctx context.Context, p []byte) (int, error) {
	start := time.Now()
	buf := csim.WrapBuffer(p)

	cls, err := r.session.OpenChannel(ctx, buf)
	if err != nil {
		r.logger.WarnContext(ctx, "bootstrap: open channel failed", "err", err)
		r.metrics.observe(err, time.Since(start))
		return 0, err
	}

	n, err := r.readRecords(ctx, cls, buf)

	if closeErr := r.session.CloseChannel(ctx, cls); closeErr != nil {
		r.logger.WarnContext(ctx, "bootstrap: close channel failed", "channel", cls.Channel, "err", closeErr)
		if err == nil {
			n, err = 0, closeErr
		}
	}

	r.metrics.observe(err, time.Since(start))
	if err != nil {
		return 0, err
	}

	r.logger.InfoContext(ctx, "bootstrap: read", "bytes", n, "duration", time.Since(start))
	return n, nil
}

// ReadAll reads the bootstrap blob into a full record buffer and returns a
// copy of it.
func (r *Reader) ReadAll(ctx context.Context) ([]byte, error) {
	p := make([]byte, csim.RecordBufferMax)
	n, err := r.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), p[:n]...), nil
}

func (r *Reader) readRecords(ctx context.Context, cls iso7816.Class, buf *csim.Buffer) (int, error) {
	if _, err := r.session.SelectApplication(ctx, cls, r.aid, buf); err != nil {
		r.logger.WarnContext(ctx, "bootstrap: select application failed", "aid", fmt.Sprintf("%X", r.aid), "err", err)
		return 0, err
	}

	directories := []struct {
		name   string
		decode PathDecoder
	}{
		{"ODF", r.decodeODF},
		{"DODF", r.decodeDODF},
	}

	path := pkcs15.ODFPath
	for _, dir := range directories {
		n, err := r.session.ReadFile(ctx, cls, string(path), buf)
		if err != nil {
			r.logger.WarnContext(ctx, "bootstrap: read failed", "file", "EF("+dir.name+")", "path", path, "err", err)
			return 0, err
		}
		if n == 0 {
			r.logger.InfoContext(ctx, "bootstrap: empty directory file", "file", "EF("+dir.name+")", "path", path)
			return 0, nil
		}

		next, ok := dir.decode(buf.Bytes()[:n])
		if !ok || next.Empty() {
			r.logger.WarnContext(ctx, "bootstrap: no entry", "file", "EF("+dir.name+")", "path", path)
			return 0, fmt.Errorf("%w: EF(%s) %s", ErrNotFound, dir.name, path)
		}

		r.logger.DebugContext(ctx, "bootstrap: directory entry", "file", "EF("+dir.name+")", "path", path, "next", next)
		path = next
	}

	n, err := r.session.ReadFile(ctx, cls, string(path), buf)
	if err != nil {
		r.logger.WarnContext(ctx, "bootstrap: read failed", "file", "bootstrap", "path", path, "err", err)
		return 0, err
	}
	return n, nil
}
