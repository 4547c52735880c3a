package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/thegunner2008/taskpay-be/internal/api/storage"
)

// DecodeTransactionCursor parses an opaque history-page cursor. An empty
// cursor means "first page".
func DecodeTransactionCursor(cursorStr string) (*storage.TransactionCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(decodedParts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	var id int64
	if _, err := fmt.Sscanf(decodedParts[1], "%d", &id); err != nil {
		return nil, fmt.Errorf("invalid id in cursor: %w", err)
	}

	return &storage.TransactionCursor{
		CreatedAt: time.Unix(0, createdAt),
		ID:        id,
	}, nil
}

// EncodeTransactionCursor builds the cursor pointing past the given row.
func EncodeTransactionCursor(createdAt time.Time, id int64) string {
	cs := fmt.Sprintf("%d|%d", createdAt.UnixNano(), id)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
