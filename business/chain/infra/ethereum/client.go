// Package ethereum adapts the JSON-RPC endpoints of both cadences to the chain ports.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/internal/apperror"
	"github.com/fd1az/flashblocks-catcher/internal/cache"
	"github.com/fd1az/flashblocks-catcher/internal/circuitbreaker"
	"github.com/fd1az/flashblocks-catcher/internal/logger"
	"github.com/fd1az/flashblocks-catcher/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/flashblocks-catcher/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/flashblocks-catcher/business/chain/infra/ethereum"
)

// ClientConfig holds configuration for the RPC client.
type ClientConfig struct {
	StandardURL       string
	FlashURL          string // preconfirmation endpoint serving the "pending" flashblock state
	ChainID           uint64
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	PrivateKey        string // hex, optional
	GasLimit          uint64
	HTTPClient        *http.Client
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(standardURL, flashURL string, chainID uint64) ClientConfig {
	return ClientConfig{
		StandardURL:       standardURL,
		FlashURL:          flashURL,
		ChainID:           chainID,
		RequestsPerSecond: 25,
		RequestTimeout:    5 * time.Second,
		GasLimit:          21000,
	}
}

type clientMetrics struct {
	calls   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

// endpoint is one JSON-RPC URL with its own breaker and rate limit.
type endpoint struct {
	name    string
	url     string
	rpc     *rpc.Client
	eth     *ethclient.Client
	cb      *circuitbreaker.CircuitBreaker[any]
	limiter *ratelimit.Limiter
}

// Client implements BlockFetcher, ReceiptQuerier and TxSubmitter.
type Client struct {
	config ClientConfig
	logger logger.LoggerInterface

	endpoints [domain.NumCadences]*endpoint

	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int

	nonceMu   sync.Mutex
	nextNonce uint64
	haveNonce bool

	tipCache     *cache.Cache[string, *big.Int]
	balanceCache *cache.Cache[common.Address, *big.Int]

	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient dials both endpoints. HTTP dials are lazy, so nothing is sent yet.
func NewClient(ctx context.Context, cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	c := &Client{
		config:       cfg,
		logger:       log,
		chainID:      new(big.Int).SetUint64(cfg.ChainID),
		tipCache:     cache.New[string, *big.Int](time.Minute),
		balanceCache: cache.New[common.Address, *big.Int](time.Minute),
		tracer:       otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
		if err != nil {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithCause(err),
				apperror.WithContext("wallet.private_key is not a valid secp256k1 key"))
		}
		c.key = key
		c.address = crypto.PubkeyToAddress(key.PublicKey)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 25
	}

	urls := [domain.NumCadences]string{
		domain.Standard: cfg.StandardURL,
		domain.Flash:    cfg.FlashURL,
	}
	for _, cadence := range domain.Cadences {
		ep, err := c.dial(ctx, cadence.String()+"-rpc", urls[cadence], rps)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.endpoints[cadence] = ep
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.calls, err = meter.Int64Counter(
		"rpc_calls_total",
		metric.WithDescription("JSON-RPC calls by endpoint and method"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	c.metrics.errors, err = meter.Int64Counter(
		"rpc_errors_total",
		metric.WithDescription("Failed JSON-RPC calls by endpoint and method"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	c.metrics.latency, err = meter.Float64Histogram(
		"rpc_latency_ms",
		metric.WithDescription("JSON-RPC round trip time"),
		metric.WithUnit("ms"),
	)
	return err
}

func (c *Client) dial(ctx context.Context, name, url string, rps float64) (*endpoint, error) {
	var opts []rpc.ClientOption
	if c.config.HTTPClient != nil {
		opts = append(opts, rpc.WithHTTPClient(c.config.HTTPClient))
	}

	rc, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, apperror.New(apperror.CodeRPCConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(name))
	}

	cbCfg := circuitbreaker.DefaultConfig(name)
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	return &endpoint{
		name:    name,
		url:     url,
		rpc:     rc,
		eth:     ethclient.NewClient(rc),
		cb:      circuitbreaker.New[any](cbCfg),
		limiter: ratelimit.New(name, rps),
	}, nil
}

// Connect verifies that both endpoints serve the configured chain.
func (c *Client) Connect(ctx context.Context) error {
	for _, cadence := range domain.Cadences {
		ep := c.endpoints[cadence]
		id, err := execute(ctx, c, ep, "eth_chainId", func(ctx context.Context) (*big.Int, error) {
			return ep.eth.ChainID(ctx)
		})
		if err != nil {
			return err
		}
		if id.Cmp(c.chainID) != 0 {
			return apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext(fmt.Sprintf("%s serves chain %s, expected %s", ep.name, id, c.chainID)))
		}
	}
	c.logger.Info(ctx, "rpc endpoints connected", "chain_id", c.chainID.String())
	return nil
}

// execute runs fn against ep behind the rate limiter, a timeout, the breaker and a span.
func execute[T any](ctx context.Context, c *Client, ep *endpoint, method string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := c.tracer.Start(ctx, "rpc."+method,
		trace.WithAttributes(
			attribute.String("endpoint", ep.name),
			attribute.String("method", method),
		),
	)
	defer span.End()

	attrs := metric.WithAttributes(
		attribute.String("endpoint", ep.name),
		attribute.String("method", method),
	)

	if err := ep.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return zero, err
	}

	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	v, err := ep.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	c.metrics.calls.Add(ctx, 1, attrs)
	c.metrics.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)

	if err != nil {
		c.metrics.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, method+" failed")

		code := apperror.CodeRPCCallFailed
		if circuitbreaker.IsOpen(err) {
			code = apperror.CodeCircuitOpen
		}
		return zero, apperror.New(code,
			apperror.WithCause(err),
			apperror.WithContext(ep.name+" "+method))
	}

	span.SetStatus(codes.Ok, "")
	out, _ := v.(T)
	return out, nil
}

// call performs a raw JSON-RPC call decoding into result.
func (c *Client) call(ctx context.Context, ep *endpoint, result any, method string, args ...any) error {
	raw, err := execute(ctx, c, ep, method, func(ctx context.Context) (json.RawMessage, error) {
		var raw json.RawMessage
		err := ep.rpc.CallContext(ctx, &raw, method, args...)
		return raw, err
	})
	if err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return apperror.New(apperror.CodeRPCCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(ep.name+" "+method+": unexpected result"))
	}
	return nil
}

// rpcBlock is eth_getBlockByNumber with hashes only. Decoding by hand keeps
// OP-stack deposit transactions from tripping go-ethereum's typed decoder.
type rpcBlock struct {
	Number       *hexutil.Big   `json:"number"`
	Hash         *common.Hash   `json:"hash"`
	ParentHash   common.Hash    `json:"parentHash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	GasLimit     hexutil.Uint64 `json:"gasLimit"`
	GasUsed      hexutil.Uint64 `json:"gasUsed"`
	BaseFee      *hexutil.Big   `json:"baseFeePerGas"`
	Transactions []common.Hash  `json:"transactions"`
}

type rpcReceipt struct {
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	Status      hexutil.Uint64 `json:"status"`
}

func blockTag(cadence domain.Cadence) string {
	if cadence == domain.Flash {
		return "pending"
	}
	return "latest"
}

func (c *Client) endpointFor(cadence domain.Cadence) (*endpoint, error) {
	if !cadence.Valid() {
		return nil, apperror.New(apperror.CodeUnsupportedCadence, apperror.WithContext(cadence.String()))
	}
	return c.endpoints[cadence], nil
}

func (c *Client) getBlock(ctx context.Context, cadence domain.Cadence) (*rpcBlock, error) {
	ep, err := c.endpointFor(cadence)
	if err != nil {
		return nil, err
	}

	var blk *rpcBlock
	if err := c.call(ctx, ep, &blk, "eth_getBlockByNumber", blockTag(cadence), false); err != nil {
		return nil, err
	}
	if blk == nil || blk.Number == nil {
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithContext(ep.name+" returned no "+blockTag(cadence)+" block"))
	}
	return blk, nil
}

// LatestBlock returns the latest standard block or the pending flash block.
func (c *Client) LatestBlock(ctx context.Context, cadence domain.Cadence) (*domain.Block, error) {
	blk, err := c.getBlock(ctx, cadence)
	if err != nil {
		return nil, err
	}
	return toDomainBlock(cadence, blk), nil
}

func toDomainBlock(cadence domain.Cadence, blk *rpcBlock) *domain.Block {
	txs := make([]domain.TxID, len(blk.Transactions))
	for i, h := range blk.Transactions {
		txs[i] = domain.TxIDFromHash(h)
	}

	b := &domain.Block{
		Cadence:      cadence,
		Number:       blk.Number.ToInt().Uint64(),
		ParentHash:   blk.ParentHash,
		Timestamp:    time.Unix(int64(blk.Timestamp), 0),
		GasLimit:     uint64(blk.GasLimit),
		GasUsed:      uint64(blk.GasUsed),
		Transactions: txs,
	}

	if blk.Hash != nil {
		b.Hash = *blk.Hash
	} else {
		b.Hash = pendingIdentity(b.Number, blk.Transactions)
	}
	return b
}

// pendingIdentity stands in for the hash some nodes omit on pending blocks.
// It changes whenever the pending transaction set grows.
func pendingIdentity(number uint64, txs []common.Hash) common.Hash {
	buf := make([]byte, 8, 8+len(txs)*common.HashLength)
	binary.BigEndian.PutUint64(buf, number)
	for _, h := range txs {
		buf = append(buf, h.Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}

// QueryReceipt asks the cadence's endpoint for a receipt. For the flash
// cadence a missing receipt falls back to scanning the pending block, which
// is reported as Pending but not Confirmed.
func (c *Client) QueryReceipt(ctx context.Context, id domain.TxID, cadence domain.Cadence) (domain.Receipt, error) {
	ep, err := c.endpointFor(cadence)
	if err != nil {
		return domain.Receipt{}, err
	}

	var rcpt *rpcReceipt
	if err := c.call(ctx, ep, &rcpt, "eth_getTransactionReceipt", id.Hash()); err != nil {
		return domain.Receipt{}, apperror.New(apperror.CodeReceiptQueryFailed,
			apperror.WithCause(err),
			apperror.WithContext(ep.name))
	}

	if rcpt != nil && rcpt.BlockNumber != nil {
		return domain.Receipt{
			Confirmed:   true,
			BlockNumber: rcpt.BlockNumber.ToInt().Uint64(),
		}, nil
	}

	if cadence != domain.Flash {
		return domain.Receipt{}, nil
	}

	blk, err := c.LatestBlock(ctx, domain.Flash)
	if err != nil {
		return domain.Receipt{}, apperror.New(apperror.CodeReceiptQueryFailed,
			apperror.WithCause(err),
			apperror.WithContext(ep.name+" pending scan"))
	}
	if blk.ContainsTx(id) {
		c.logger.Debug(ctx, "transaction in pending block without receipt",
			"tx", id.Short(), "block", blk.Number)
		return domain.Receipt{Pending: true, BlockNumber: blk.Number}, nil
	}
	return domain.Receipt{}, nil
}

// Address returns the submitting account, zero when no key is configured.
func (c *Client) Address() common.Address {
	return c.address
}

// Close closes both endpoints and the caches.
func (c *Client) Close() error {
	for _, ep := range c.endpoints {
		if ep != nil {
			ep.rpc.Close()
		}
	}
	c.tipCache.Close()
	c.balanceCache.Close()
	return nil
}
