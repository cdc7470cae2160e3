// Package solanarpc is a thin wrapper around the Solana JSON-RPC client
// surfacing only the operations this executor needs: balance reads,
// blockhash/slot queries, and transaction submission/confirmation. The
// on-chain transaction encoding itself is out of scope for this module;
// callers pass through an opaque *solana.Transaction built elsewhere.
package solanarpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// legacyLamportsPerUSDCBug is the constant the original implementation
// used to convert a native SOL balance into a USDC-denominated equity
// figure. Lamports-per-SOL is 1e9; this value conflates it with USDC's
// 1e6 minor-unit scale. Kept only as a documented, unused historical
// artifact — see Client.BalanceUSDC and DESIGN.md.
const legacyLamportsPerUSDCBug = 1_000_000

// Client wraps one or more RPC endpoints: a primary used for reads and a
// full fan-out list (primary plus secondaries) used for submission.
type Client struct {
	primary    *rpc.Client
	submitters []*rpc.Client
}

// New builds a Client. endpoints[0] is the primary URL; any additional
// endpoints are secondaries used only for transaction fan-out.
func New(endpoints []string) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	submitters := make([]*rpc.Client, 0, len(endpoints))
	for _, e := range endpoints {
		submitters = append(submitters, rpc.New(e))
	}
	return &Client{primary: submitters[0], submitters: submitters}, nil
}

// GetBalance returns the lamport balance of pub via the primary endpoint.
func (c *Client) GetBalance(ctx context.Context, pub solana.PublicKey) (uint64, error) {
	out, err := c.primary.GetBalance(ctx, pub, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return out.Value, nil
}

// BalanceUSDC returns pub's native balance in SOL (lamports divided by
// LamportsPerSOL); no SOL-to-USDC price conversion is applied, despite the
// name. This resolves the LAMPORTS_PER_USDC
// ambiguity flagged in the design notes as "native balance in SOL",
// since getBalance is a native-balance RPC call; a token-account read
// would be a different code path, not present in this scope.
func (c *Client) BalanceUSDC(ctx context.Context, pub solana.PublicKey) (float64, error) {
	lamports, err := c.GetBalance(ctx, pub)
	if err != nil {
		return 0, err
	}
	return float64(lamports) / LamportsPerSOL, nil
}

// GetLatestBlockhash fetches a recent blockhash from the primary endpoint.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.primary.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// GetSlot returns the current slot from the primary endpoint.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	slot, err := c.primary.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return uint64(slot), nil
}

// SubmitResult is the outcome of fanning a transaction out to all
// configured endpoints.
type SubmitResult struct {
	Signature solana.Signature
	Endpoint  string
}

// Submit sends tx to every configured endpoint; the first to accept it
// wins and its signature is returned. Errors on the other endpoints are
// warnings only, surfaced as a joined error if every endpoint rejects.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (*SubmitResult, error) {
	var first *SubmitResult
	var errs []error
	for i, cli := range c.submitters {
		sig, err := cli.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{SkipPreflight: true})
		if err != nil {
			errs = append(errs, fmt.Errorf("endpoint %d: %w", i, err))
			continue
		}
		if first == nil {
			first = &SubmitResult{Signature: sig}
		}
	}
	if first != nil {
		return first, nil
	}
	if len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no endpoints configured"))
	}
	return nil, fmt.Errorf("submit rejected by every endpoint: %w", errors.Join(errs...))
}

// SubmitTip best-effort-broadcasts a tip transaction ahead of the real
// one. Errors are ignored by design — the tip carries no nonce
// relationship to the following transaction and may arrive out of order;
// it is best-effort only.
func (c *Client) SubmitTip(ctx context.Context, tx *solana.Transaction) {
	for _, cli := range c.submitters {
		_, _ = cli.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{SkipPreflight: true})
	}
}

// confirmPollInterval and confirmSlotBudget implement the Confirmation
// policy from spec.md §4.3: poll every 400ms, fail once the slot counter
// has advanced by more than 10 slots from submission without a positive.
const (
	confirmPollInterval = 400 * time.Millisecond
	confirmSlotBudget   = 10
)

// Confirm polls for confirmation of sig, succeeding on first positive
// status and failing once the slot budget is exhausted.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature) error {
	startSlot, err := c.GetSlot(ctx)
	if err != nil {
		return fmt.Errorf("confirm: get starting slot: %w", err)
	}

	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			statuses, err := c.primary.GetSignatureStatuses(ctx, true, sig)
			if err == nil && len(statuses.Value) == 1 && statuses.Value[0] != nil {
				st := statuses.Value[0]
				if st.Err == nil && st.ConfirmationStatus != "" {
					return nil
				}
			}

			slot, err := c.GetSlot(ctx)
			if err == nil && slot > startSlot+confirmSlotBudget {
				return fmt.Errorf("confirm: slot budget exhausted without confirmation")
			}
		}
	}
}
