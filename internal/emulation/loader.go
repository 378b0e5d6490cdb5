package emulation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"trade-emulator/internal/domain"
)

// ErrInvalidTransactionRow is returned for a malformed transaction file row.
var ErrInvalidTransactionRow = errors.New("invalid transaction row")

// transactionRow is one line of a transaction file: date,symbol,amount,sell_price.
type transactionRow struct {
	Date      string `validate:"required,len=8,numeric"`
	Symbol    string `validate:"required,alphanum"`
	Amount    int64  `validate:"ne=0"`
	SellPrice string `validate:"required"`
}

var rowValidator = validator.New()

// LoadTransactionsCSV reads transactions from r. A leading header row is skipped.
// sell_price is one of open, high, low, close or a positive integer price.
func LoadTransactionsCSV(r io.Reader) ([]domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var txs []domain.Transaction
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read transactions: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue
		}

		tx, err := parseTransactionRow(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func parseTransactionRow(record []string) (domain.Transaction, error) {
	amount, err := strconv.ParseInt(strings.TrimSpace(record[2]), 10, 64)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: amount %q", ErrInvalidTransactionRow, record[2])
	}

	row := transactionRow{
		Date:      strings.TrimSpace(record[0]),
		Symbol:    strings.TrimSpace(record[1]),
		Amount:    amount,
		SellPrice: strings.ToLower(strings.TrimSpace(record[3])),
	}
	if err := rowValidator.Struct(row); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.Transaction{}, fmt.Errorf("%w: %s failed %s", ErrInvalidTransactionRow, verrs[0].Field(), verrs[0].Tag())
		}
		return domain.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidTransactionRow, err)
	}

	date, err := domain.ParseDate(row.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidTransactionRow, err)
	}

	var price domain.SellPrice
	if tag, ok := domain.ParsePriceTag(row.SellPrice); ok {
		price = domain.AtTag(tag)
	} else {
		v, err := strconv.ParseInt(row.SellPrice, 10, 64)
		if err != nil || v <= 0 {
			return domain.Transaction{}, fmt.Errorf("%w: sell price %q", ErrInvalidTransactionRow, row.SellPrice)
		}
		price = domain.AtPrice(v)
	}

	return domain.Transaction{
		Date:      date,
		Symbol:    row.Symbol,
		Amount:    row.Amount,
		SellPrice: price,
	}, nil
}
