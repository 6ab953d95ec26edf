package storage

import "fmt"

// Key space for one sale. Everything is prefixed by the sale id so a
// campaign's state can be inspected (or wiped) with a single pattern.
func lineKey(saleID string) string {
	return fmt.Sprintf("sale:%s:line", saleID)
}

func stockKey(saleID string) string {
	return fmt.Sprintf("sale:%s:stock", saleID)
}

func metaKey(saleID string) string {
	return fmt.Sprintf("sale:%s:meta", saleID)
}

func holdKey(saleID, email string) string {
	return fmt.Sprintf("sale:%s:hold:%s", saleID, email)
}

func consumedKey(saleID, email string) string {
	return fmt.Sprintf("sale:%s:consumed:%s", saleID, email)
}

func claimKey(saleID, email string) string {
	return fmt.Sprintf("sale:%s:claim:%s", saleID, email)
}
