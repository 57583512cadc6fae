package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

const routerABIJson = `[
{"inputs":[],"name":"WETH","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsIn","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

var (
	ErrUnexpectedOutput = errors.New("unexpected router output")

	routerABI = func() abi.ABI {
		parsed, err := abi.JSON(strings.NewReader(routerABIJson))
		if err != nil {
			panic(err)
		}
		return parsed
	}()
)

const DefaultMaxElapsed = 15 * time.Second

// RouterClient quotes against an on-chain UniswapV2-style router.
type RouterClient struct {
	caller     ethereum.ContractCaller
	router     common.Address
	maxElapsed time.Duration
}

func NewRouterClient(caller ethereum.ContractCaller, router common.Address) *RouterClient {
	return &RouterClient{caller: caller, router: router, maxElapsed: DefaultMaxElapsed}
}

// DialRouter connects to an RPC endpoint and returns a client bound to router.
func DialRouter(ethURL string, router common.Address) (*RouterClient, error) {
	client, err := ethclient.Dial(ethURL)
	if err != nil {
		return nil, err
	}
	return NewRouterClient(client, router), nil
}

func (c *RouterClient) SetMaxElapsed(d time.Duration) {
	c.maxElapsed = d
}

func (c *RouterClient) WETH(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, "WETH")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, ErrUnexpectedOutput
	}
	return addr, nil
}

// GetAmountsOut returns the amounts along path for an exact input.
func (c *RouterClient) GetAmountsOut(ctx context.Context, amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	return c.amounts(ctx, "getAmountsOut", amountIn, path)
}

// GetAmountsIn returns the amounts along path for an exact output.
func (c *RouterClient) GetAmountsIn(ctx context.Context, amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	return c.amounts(ctx, "getAmountsIn", amountOut, path)
}

// QuoteOut is the final hop of GetAmountsOut.
func (c *RouterClient) QuoteOut(ctx context.Context, amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	amounts, err := c.GetAmountsOut(ctx, amountIn, path)
	if err != nil {
		return nil, err
	}
	return amounts[len(amounts)-1], nil
}

// QuoteIn is the first hop of GetAmountsIn.
func (c *RouterClient) QuoteIn(ctx context.Context, amountOut *uint256.Int, path []common.Address) (*uint256.Int, error) {
	amounts, err := c.GetAmountsIn(ctx, amountOut, path)
	if err != nil {
		return nil, err
	}
	return amounts[0], nil
}

func (c *RouterClient) amounts(ctx context.Context, method string, amount *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	out, err := c.call(ctx, method, amount.ToBig(), path)
	if err != nil {
		return nil, err
	}
	raw, ok := out[0].([]*big.Int)
	if !ok || len(raw) != len(path) {
		return nil, fmt.Errorf("%w: %s returned %v", ErrUnexpectedOutput, method, out)
	}
	amounts := make([]*uint256.Int, len(raw))
	for i, v := range raw {
		z, overflow := uint256.FromBig(v)
		if overflow {
			return nil, fmt.Errorf("%w: %s amount %d overflows", ErrUnexpectedOutput, method, i)
		}
		amounts[i] = z
	}
	return amounts, nil
}

func (c *RouterClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := routerABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	operation := func() ([]byte, error) {
		res, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.router, Data: data}, nil)
		if err != nil {
			if isRevert(err) || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			logrus.Warnf("router %s call failed, retrying: %v", method, err)
			return nil, err
		}
		return res, nil
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.maxElapsed),
	)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := routerABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s returned nothing", ErrUnexpectedOutput, method)
	}
	return out, nil
}

func isRevert(err error) bool {
	return strings.Contains(err.Error(), "execution reverted")
}
