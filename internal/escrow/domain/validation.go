package domain

// ReplayBalances folds a transaction log in creation order and returns the
// balances it reproduces. Only COMPLETED entries move funds.
func ReplayBalances(entries []EscrowTransaction) (balance int64, available int64, err error) {
	for _, entry := range entries {
		if entry.Status != TxStatusCompleted {
			continue
		}
		switch entry.Type {
		case TypeDeposit:
			balance += entry.Amount
			available += entry.Amount
		case TypeHold:
			available -= entry.Amount
		case TypeUnhold, TypeRelease:
			available += entry.Amount
		case TypeWithdraw:
			balance -= entry.Amount
			available -= entry.Amount
		default:
			return 0, 0, ErrInvalidEntryType
		}
	}
	return balance, available, nil
}

// Verify checks a replayed log against the stored account.
func Verify(account EscrowAccount, entries []EscrowTransaction) error {
	balance, available, err := ReplayBalances(entries)
	if err != nil {
		return err
	}
	if balance != account.Balance || available != account.AvailableBalance {
		return ErrReplayMismatch
	}
	return nil
}
