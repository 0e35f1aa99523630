package shared

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// NextDocumentSeq atomically allocates the next sequence number for a
// document type within a period. The upsert takes a row lock, so concurrent
// allocations for the same (doc_type, period) serialize.
func NextDocumentSeq(ctx context.Context, tx pgx.Tx, docType, period string) (int, error) {
	var seq int
	err := tx.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET last_seq = document_sequences.last_seq + 1
		RETURNING last_seq`,
		docType, period,
	).Scan(&seq)
	return seq, err
}
