package core

// convert.go turns raw price cells into values the repository can store.
//
// Price cells arrive the way spreadsheets export them: currency symbols,
// thousands separators, accounting negatives "(1.00)" and Excel formula
// wrappers. Parsing happens at write time, not during validation, so a
// malformed price surfaces as a write failure for that row only.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex matches a plain decimal literal after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// ErrInvalidPrice is returned when a price cell cannot be read as a decimal.
var ErrInvalidPrice = errors.New("invalid price")

// ErrNegativePrice is returned for prices below zero.
var ErrNegativePrice = errors.New("price must not be negative")

// ErrInvalidStoreID is returned when store_id is not a non-negative integer.
var ErrInvalidStoreID = errors.New("invalid store id")

// NormalizePrice strips currency decoration from a price cell and returns
// the bare decimal literal.
func NormalizePrice(s string) (string, error) {
	s = CleanCell(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidPrice)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if !numericRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	if negative || strings.HasPrefix(s, "-") {
		if strings.Trim(strings.TrimLeft(s, "+-"), "0.") != "" {
			return "", ErrNegativePrice
		}
	}
	return strings.TrimPrefix(s, "+"), nil
}

// ParsePrice converts a price cell to pgtype.Numeric.
func ParsePrice(s string) (pgtype.Numeric, error) {
	literal, err := NormalizePrice(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}

	var n pgtype.Numeric
	if err := n.Scan(literal); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return n, nil
}

// ParseStoreID converts a store_id cell to a StoreID.
// Spreadsheet exports of whole numbers ("3.0") are accepted.
func ParseStoreID(s string) (StoreID, error) {
	s = CleanCell(s)
	if s == "" {
		return GlobalStore, nil
	}
	s = strings.TrimSuffix(s, ".0")

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStoreID, s)
	}
	return StoreID(id), nil
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}
