package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
)

type options struct {
	meterProvider  metric.MeterProvider
	providerName   string
	transport      http.RoundTripper
	requestTimeout time.Duration
	headers        map[string]string
}

// Option configures New.
type Option func(*options)

// WithProviderName labels spans and the request counter with the upstream,
// e.g. "chain-rpc" or "flashblocks-ws".
func WithProviderName(name string) Option {
	return func(o *options) { o.providerName = name }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTransport replaces the pooled base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithRequestTimeout sets http.Client.Timeout. Websocket dialers reject
// clients with a timeout, so the stream client never sets it.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *options) { o.requestTimeout = timeout }
}

// WithHeaders adds headers to requests that do not already carry them.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) { o.headers = headers }
}
