package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"riskradar/pkg/models"
)

// Config configures chain access.
type Config struct {
	RPCURL         string
	RequestTimeout time.Duration
}

// Client reads contract-creation transactions from an EVM chain over RPC.
type Client struct {
	client  *ethclient.Client
	signer  types.Signer
	timeout time.Duration
}

// Dial connects to the RPC endpoint and resolves the chain id, which is
// needed to recover deployer addresses from raw transactions.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain rpc url is empty")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	chainID, err := client.ChainID(cctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve chain id: %w", err)
	}

	return &Client{
		client:  client,
		signer:  types.LatestSignerForChainID(chainID),
		timeout: timeout,
	}, nil
}

// LatestHeight returns the chain's current tip height.
func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	height, err := c.client.BlockNumber(cctx)
	if err != nil {
		return 0, fmt.Errorf("read chain tip: %w", err)
	}
	return height, nil
}

// DeploymentsInBlock returns the contract-creation transactions in a block.
// A creation transaction has no recipient; the created address comes from
// its receipt.
func (c *Client) DeploymentsInBlock(ctx context.Context, height uint64) ([]models.Deployment, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	block, err := c.client.BlockByNumber(cctx, new(big.Int).SetUint64(height))
	if err != nil {
		return nil, fmt.Errorf("read block %d: %w", height, err)
	}

	var out []models.Deployment
	for _, tx := range block.Transactions() {
		if tx.To() != nil {
			continue
		}

		rctx, rcancel := context.WithTimeout(ctx, c.timeout)
		receipt, err := c.client.TransactionReceipt(rctx, tx.Hash())
		rcancel()
		if err != nil {
			return nil, fmt.Errorf("read receipt %s: %w", tx.Hash().Hex(), err)
		}
		if receipt.ContractAddress == (common.Address{}) {
			continue
		}

		deployer := ""
		if from, err := types.Sender(c.signer, tx); err == nil {
			deployer = from.Hex()
		}

		out = append(out, models.Deployment{
			BlockHeight:     height,
			EventID:         tx.Hash().Hex(),
			ContractAddress: receipt.ContractAddress.Hex(),
			Deployer:        deployer,
		})
	}
	return out, nil
}

// Close releases the RPC connection.
func (c *Client) Close() error {
	c.client.Close()
	return nil
}
