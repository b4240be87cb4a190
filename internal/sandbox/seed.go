package sandbox

import (
	"time"

	"github.com/dmitrijs2005/mondo/internal/mondo"
)

// Seed is the initial state of a sandbox: one user with its accounts and
// their transactions.
type Seed struct {
	UserID       string
	Accounts     []mondo.Account
	Transactions []mondo.Transaction
}

// DefaultSeed returns one user with one account holding a top-up and two
// card payments, the last of them made on the current day.
func DefaultSeed(now time.Time) Seed {
	const accountID = "acc_00009237aqC8c5umZmrRdh"
	day := now.Truncate(24 * time.Hour)

	deli := &mondo.Merchant{
		ID:       "merch_00008zIcpbAKe8shBxXUtl",
		GroupID:  "grp_00008zIcpbAKe8shBxXUtl",
		Name:     "The De Beauvoir Deli Co.",
		Logo:     "https://pbs.twimg.com/profile_images/527043602623389696/68_SgUWJ.jpeg",
		Emoji:    "🍞",
		Category: "eating_out",
		Address: &mondo.MerchantAddress{
			Address:   "98 Southgate Road",
			City:      "London",
			Region:    "Greater London",
			Country:   "GB",
			Postcode:  "N1 3JD",
			Latitude:  51.54151,
			Longitude: -0.08482400000002599,
		},
	}
	market := &mondo.Merchant{
		ID:       "merch_000092jBZ0K0TplGmIw2eP",
		Name:     "Broadway Market",
		Category: "groceries",
		Address: &mondo.MerchantAddress{
			Address:  "Broadway Market",
			City:     "London",
			Country:  "GB",
			Postcode: "E8 4PH",
		},
	}

	return Seed{
		UserID: "user_00009237aqC8c5umZmrRdh",
		Accounts: []mondo.Account{{
			ID:          accountID,
			Description: "Peter Pan's Account",
			Created:     day.AddDate(0, -1, 0),
		}},
		Transactions: []mondo.Transaction{
			{
				ID:          "tx_00008zL2INM3xZ41THuRF3",
				AccountID:   accountID,
				Created:     day.AddDate(0, 0, -7).Add(9 * time.Hour),
				Description: "TOPUP",
				Amount:      10000,
				Currency:    "GBP",
				Category:    "mondo",
				IsLoad:      true,
			},
			{
				ID:          "tx_00008zIcpb1TB4yeIFXMzx",
				AccountID:   accountID,
				Created:     day.AddDate(0, 0, -2).Add(12 * time.Hour),
				Description: "THE DE BEAUVOIR DELI C LONDON GBR",
				Amount:      -510,
				Currency:    "GBP",
				Category:    "eating_out",
				Merchant:    deli,
			},
			{
				ID:          "tx_00009FMyaIyOsCVhRVHTCz",
				AccountID:   accountID,
				Created:     day.Add(time.Minute),
				Description: "BROADWAY MARKET LONDON GBR",
				Amount:      -679,
				Currency:    "GBP",
				Category:    "groceries",
				Merchant:    market,
			},
		},
	}
}

// load replaces the server state with seed. Balances are recomputed from
// the transactions in order.
func (s *Server) load(seed Seed) {
	s.userID = seed.UserID
	s.accounts = append([]mondo.Account(nil), seed.Accounts...)

	running := map[string]int64{}
	for _, tx := range sortedByCreated(seed.Transactions) {
		running[tx.AccountID] += tx.Amount
		tx.AccountBalance = running[tx.AccountID]
		if tx.Metadata == nil {
			tx.Metadata = map[string]string{}
		}
		if tx.Settled == "" && !tx.Created.IsZero() {
			tx.Settled = tx.Created.Add(24 * time.Hour).UTC().Format(time.RFC3339)
		}
		s.transactions[tx.ID] = &tx
	}
}
