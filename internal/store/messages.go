package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// InboundMessage is the durable record of a verified inbound envelope.
// message_id is the content hash; processed/success capture the downstream
// handler outcome and are never reset (at-most-once processing).
type InboundMessage struct {
	MessageID    string
	OriginDomain uint32
	Sender       string
	Nonce        uint64
	Timestamp    int64
	Processed    bool
	Success      bool
}

// FailedMessage is a queued outbound envelope whose dispatch or gas payment
// failed, awaiting a backoff-scheduled retry.
type FailedMessage struct {
	ID          int64
	MessageType uint8
	DestDomain  uint32
	Recipient   string
	Payload     []byte
	GasPayment  string
	Attempts    int
	LastAttempt int64
	Resolved    bool
}

// HasInboundMessage reports whether a message id was already recorded.
func (s *Store) HasInboundMessage(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM inbound_messages WHERE message_id = $1`, messageID,
	).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to query inbound message")
	}

	return true, nil
}

// InsertInboundMessage records a verified inbound message.
func (s *Store) InsertInboundMessage(ctx context.Context, m InboundMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inbound_messages (message_id, origin_domain, sender, nonce, timestamp, processed, success)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.MessageID, m.OriginDomain, m.Sender, m.Nonce, m.Timestamp, m.Processed, m.Success,
	)

	return errors.Wrap(err, "failed to insert inbound message")
}

// MarkInboundSuccess flips the success flag after the downstream handler
// completed. The processed flag is never reset.
func (s *Store) MarkInboundSuccess(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE inbound_messages SET success = 1 WHERE message_id = $1`, messageID,
	)

	return errors.Wrap(err, "failed to mark inbound message success")
}

// InboundMessageByID loads a recorded inbound message.
func (s *Store) InboundMessageByID(ctx context.Context, messageID string) (*InboundMessage, error) {
	m := &InboundMessage{}
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id, origin_domain, sender, nonce, timestamp, processed, success
		 FROM inbound_messages WHERE message_id = $1`, messageID,
	).Scan(&m.MessageID, &m.OriginDomain, &m.Sender, &m.Nonce, &m.Timestamp, &m.Processed, &m.Success)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query inbound message by id")
	}

	return m, nil
}

// NextOutboundNonce atomically reserves the next outbound nonce for a
// destination domain, starting at 1.
func (s *Store) NextOutboundNonce(ctx context.Context, destDomain uint32) (uint64, error) {
	var nonce uint64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO outbound_nonces (dest_domain, next_nonce) VALUES ($1, 1)
		 ON CONFLICT (dest_domain) DO UPDATE SET next_nonce = next_nonce + 1
		 RETURNING next_nonce`, destDomain,
	).Scan(&nonce)
	if err != nil {
		return 0, errors.Wrap(err, "failed to reserve outbound nonce")
	}

	return nonce, nil
}

// Cursor returns the last accepted nonce and timestamp for an
// (origin domain, sender) pair, or zeros if none was recorded yet.
func (s *Store) Cursor(ctx context.Context, originDomain uint32, sender string) (uint64, int64, error) {
	var nonce uint64
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_nonce, last_timestamp FROM domain_cursors WHERE origin_domain = $1 AND sender = $2`,
		originDomain, sender,
	).Scan(&nonce, &ts)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to query domain cursor")
	}

	return nonce, ts, nil
}

// AdvanceCursor commits a new last nonce/timestamp for the pair.
func (s *Store) AdvanceCursor(ctx context.Context, originDomain uint32, sender string, nonce uint64, timestamp int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domain_cursors (origin_domain, sender, last_nonce, last_timestamp)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (origin_domain, sender)
		 DO UPDATE SET last_nonce = $3, last_timestamp = $4`,
		originDomain, sender, nonce, timestamp,
	)

	return errors.Wrap(err, "failed to advance domain cursor")
}

// EnqueueFailedMessage stores an undeliverable outbound message for retry
// and returns its queue id.
func (s *Store) EnqueueFailedMessage(ctx context.Context, m FailedMessage) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO failed_messages (message_type, dest_domain, recipient, payload, gas_payment, attempts, last_attempt)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.MessageType, m.DestDomain, m.Recipient, m.Payload, m.GasPayment, m.Attempts, m.LastAttempt,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to enqueue failed message")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read failed message id")
	}

	return id, nil
}

// FailedMessageByID loads a single queued message.
func (s *Store) FailedMessageByID(ctx context.Context, id int64) (*FailedMessage, error) {
	m := &FailedMessage{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, message_type, dest_domain, recipient, payload, gas_payment, attempts, last_attempt, resolved
		 FROM failed_messages WHERE id = $1`, id,
	).Scan(&m.ID, &m.MessageType, &m.DestDomain, &m.Recipient, &m.Payload, &m.GasPayment, &m.Attempts, &m.LastAttempt, &m.Resolved)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("failed message not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query failed message")
	}

	return m, nil
}

// RecordRetryAttempt bumps the attempt counter after another failure.
func (s *Store) RecordRetryAttempt(ctx context.Context, id int64, attempts int, lastAttempt int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE failed_messages SET attempts = $2, last_attempt = $3 WHERE id = $1`,
		id, attempts, lastAttempt,
	)

	return errors.Wrap(err, "failed to record retry attempt")
}

// ResolveFailedMessage marks a queued message as successfully delivered.
func (s *Store) ResolveFailedMessage(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE failed_messages SET resolved = 1 WHERE id = $1`, id,
	)

	return errors.Wrap(err, "failed to resolve failed message")
}

// ListFailedMessages returns all unresolved queued messages, oldest first.
func (s *Store) ListFailedMessages(ctx context.Context) ([]*FailedMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_type, dest_domain, recipient, payload, gas_payment, attempts, last_attempt, resolved
		 FROM failed_messages WHERE resolved = 0 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list failed messages")
	}
	defer rows.Close()

	msgs := make([]*FailedMessage, 0)
	for rows.Next() {
		m := &FailedMessage{}
		if err := rows.Scan(&m.ID, &m.MessageType, &m.DestDomain, &m.Recipient, &m.Payload, &m.GasPayment, &m.Attempts, &m.LastAttempt, &m.Resolved); err != nil {
			return nil, errors.Wrap(err, "failed to scan failed message")
		}
		msgs = append(msgs, m)
	}

	return msgs, errors.Wrap(rows.Err(), "failed to iterate failed messages")
}
