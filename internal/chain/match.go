package chain

import (
	"time"

	"starpay/internal/models"
)

// CommentMarker prefixes every comment this service hands out, so the fuzzy
// rule only ever considers comments that were meant for us.
const CommentMarker = 'T'

// RecencyWindow bounds how old a transfer may be and still count as payment
// evidence. Anything older is ignored even on an exact comment match.
const RecencyWindow = 30 * time.Minute

type MatchResult struct {
	Found      bool
	AmountNano int64
	Tx         models.LedgerTransaction
}

// Match scans txs (most recent first, as the indexer returns them) for the
// first incoming transfer that correlates with the order's comment.
//
// Priority: exact comment equality, then the fuzzy rule for payer wallets
// that mangle memo fields (both comments start with the marker and agree on
// the trailing 3 characters), and finally, for orders created without a
// comment, any positive transfer inside the window.
//
// The transfer amount is deliberately not a matching key: the quoted amount
// drifts with the price feed between quote time and payment time.
func Match(order *models.Order, txs []models.LedgerTransaction, now time.Time) MatchResult {
	for _, tx := range txs {
		if tx.AmountNano <= 0 {
			continue
		}
		if now.Sub(tx.Timestamp) >= RecencyWindow {
			continue
		}
		if commentMatches(order.Discriminator, tx.Comment) {
			return MatchResult{Found: true, AmountNano: tx.AmountNano, Tx: tx}
		}
	}
	return MatchResult{}
}

func commentMatches(want, got string) bool {
	if want == "" {
		return true
	}
	if got == want {
		return true
	}
	return fuzzyMatches(want, got)
}

func fuzzyMatches(want, got string) bool {
	if len(want) < 4 || len(got) < 4 {
		return false
	}
	if want[0] != CommentMarker || got[0] != CommentMarker {
		return false
	}
	return want[len(want)-3:] == got[len(got)-3:]
}
