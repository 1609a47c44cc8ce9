package enums

// TransactionStatus maps to the transaction_status enum in Postgres.
type TransactionStatus string

const (
	// TransactionStatusSucceeded marks a payment the gateway reported as captured.
	TransactionStatusSucceeded TransactionStatus = "succeeded"
)
