package ethereum

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/internal/apperror"
)

const (
	tipCacheKey = "tip"
	tipTTL      = 2 * time.Second
	balanceTTL  = 10 * time.Second
	weiDecimals = 18
)

// SubmitTransaction signs and broadcasts an EIP-1559 transfer through the
// flash endpoint so that it lands in the next flashblock.
func (c *Client) SubmitTransaction(ctx context.Context, to common.Address, valueETH decimal.Decimal) (domain.TxID, error) {
	if c.key == nil {
		return "", apperror.New(apperror.CodeWalletNotConfigured)
	}

	wei, err := toWei(valueETH)
	if err != nil {
		return "", err
	}

	ep := c.endpoints[domain.Flash]

	nonce, err := c.nonce(ctx)
	if err != nil {
		return "", submitError(err, "pending nonce")
	}

	tip, err := c.gasTipCap(ctx)
	if err != nil {
		return "", submitError(err, "gas tip")
	}

	head, err := c.getBlock(ctx, domain.Standard)
	if err != nil {
		return "", submitError(err, "base fee")
	}
	baseFee := big.NewInt(0)
	if head.BaseFee != nil {
		baseFee = head.BaseFee.ToInt()
	}

	// 2x base fee keeps the tx valid across a few full blocks.
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       c.config.GasLimit,
		To:        &to,
		Value:     wei,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", apperror.New(apperror.CodeTxSignFailed, apperror.WithCause(err))
	}

	if _, err := execute(ctx, c, ep, "eth_sendRawTransaction", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, ep.eth.SendTransaction(ctx, signed)
	}); err != nil {
		c.resetNonce()
		return "", submitError(err, "send")
	}

	c.balanceCache.Delete(ctx, c.address)

	id := domain.TxIDFromHash(signed.Hash())
	c.logger.Info(ctx, "transaction submitted",
		"tx", id.String(),
		"nonce", nonce,
		"to", to.Hex(),
		"value_eth", valueETH.String(),
		"tip_wei", tip.String(),
		"fee_cap_wei", feeCap.String())

	return id, nil
}

// nonce returns the next nonce, never reusing one handed out earlier even
// when the node has not seen the previous transaction yet.
func (c *Client) nonce(ctx context.Context) (uint64, error) {
	ep := c.endpoints[domain.Flash]
	pending, err := execute(ctx, c, ep, "eth_getTransactionCount", func(ctx context.Context) (uint64, error) {
		return ep.eth.PendingNonceAt(ctx, c.address)
	})
	if err != nil {
		return 0, err
	}

	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	n := pending
	if c.haveNonce && c.nextNonce > n {
		n = c.nextNonce
	}
	c.nextNonce = n + 1
	c.haveNonce = true
	return n, nil
}

func (c *Client) resetNonce() {
	c.nonceMu.Lock()
	c.haveNonce = false
	c.nonceMu.Unlock()
}

func (c *Client) gasTipCap(ctx context.Context) (*big.Int, error) {
	if tip, ok := c.tipCache.Get(ctx, tipCacheKey); ok {
		return new(big.Int).Set(tip), nil
	}

	ep := c.endpoints[domain.Standard]
	tip, err := execute(ctx, c, ep, "eth_maxPriorityFeePerGas", func(ctx context.Context) (*big.Int, error) {
		return ep.eth.SuggestGasTipCap(ctx)
	})
	if err != nil {
		return nil, err
	}

	c.tipCache.Set(ctx, tipCacheKey, tip, tipTTL)
	return new(big.Int).Set(tip), nil
}

// Wallet returns the configured account and its cached balance.
func (c *Client) Wallet(ctx context.Context) (domain.WalletInfo, error) {
	if c.key == nil {
		return domain.WalletInfo{}, apperror.New(apperror.CodeWalletNotConfigured)
	}

	wei, ok := c.balanceCache.Get(ctx, c.address)
	if !ok {
		ep := c.endpoints[domain.Standard]
		var err error
		wei, err = execute(ctx, c, ep, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
			return ep.eth.BalanceAt(ctx, c.address, nil)
		})
		if err != nil {
			return domain.WalletInfo{}, err
		}
		c.balanceCache.Set(ctx, c.address, wei, balanceTTL)
	}

	return domain.WalletInfo{
		Address: c.address,
		Balance: decimal.NewFromBigInt(wei, -weiDecimals),
	}, nil
}

func toWei(eth decimal.Decimal) (*big.Int, error) {
	if eth.IsNegative() {
		return nil, apperror.New(apperror.CodeInvalidAmount, apperror.WithContext(eth.String()))
	}
	wei := eth.Shift(weiDecimals)
	if !wei.IsInteger() {
		return nil, apperror.New(apperror.CodeInvalidAmount,
			apperror.WithContext(eth.String()+" has more than 18 decimals"))
	}
	return wei.BigInt(), nil
}

func submitError(err error, stage string) error {
	return apperror.New(apperror.CodeTxSubmitFailed,
		apperror.WithCause(err),
		apperror.WithContext(stage))
}
