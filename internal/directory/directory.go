// Package directory maps opaque recipient identifiers onto delivery
// contacts. It replaces the ambient in-process maps the booking bot kept for
// chat sessions and verification state with an explicit keyed store: entries
// are created on first bind and evicted by TTL.
package directory

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/notify"
)

const (
	contactKeyPrefix = "directory:contact:"
	codeKeyPrefix    = "directory:code:"
)

// ErrNotBound marks a recipient with no stored contact.
var ErrNotBound = errors.New("recipient not bound")

type Directory struct {
	rdb     *redis.Client
	logger  logger.Logger
	ttl     time.Duration
	codeTTL time.Duration
}

func New(rdb *redis.Client, ttl, codeTTL time.Duration, log logger.Logger) *Directory {
	return &Directory{
		rdb:     rdb,
		logger:  log.WithFields(map[string]interface{}{"component": "directory"}),
		ttl:     ttl,
		codeTTL: codeTTL,
	}
}

var _ notify.ContactResolver = (*Directory)(nil)

// Bind stores (or refreshes) the delivery contact for a recipient.
func (d *Directory) Bind(ctx context.Context, recipient string, contact notify.Contact) error {
	payload, err := json.Marshal(contact)
	if err != nil {
		return stderrors.NewInternalError(err)
	}
	if err := d.rdb.Set(ctx, contactKeyPrefix+recipient, payload, d.ttl).Err(); err != nil {
		return stderrors.NewExternalServiceError("redis", err)
	}
	return nil
}

// Contact implements notify.ContactResolver.
func (d *Directory) Contact(ctx context.Context, recipient string) (notify.Contact, error) {
	val, err := d.rdb.Get(ctx, contactKeyPrefix+recipient).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notify.Contact{}, ErrNotBound
		}
		return notify.Contact{}, stderrors.NewExternalServiceError("redis", err)
	}

	var contact notify.Contact
	if err := json.Unmarshal([]byte(val), &contact); err != nil {
		return notify.Contact{}, stderrors.NewInternalError(err)
	}
	return contact, nil
}

// Unbind removes a recipient's contact and any pending verification code.
func (d *Directory) Unbind(ctx context.Context, recipient string) error {
	if err := d.rdb.Del(ctx, contactKeyPrefix+recipient, codeKeyPrefix+recipient).Err(); err != nil {
		return stderrors.NewExternalServiceError("redis", err)
	}
	return nil
}

// IssueCode generates a short-lived verification code for a recipient. A new
// code replaces any outstanding one.
func (d *Directory) IssueCode(ctx context.Context, recipient string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", stderrors.NewInternalError(err)
	}
	if err := d.rdb.Set(ctx, codeKeyPrefix+recipient, code, d.codeTTL).Err(); err != nil {
		return "", stderrors.NewExternalServiceError("redis", err)
	}
	return code, nil
}

// VerifyCode checks a code and consumes it on success.
func (d *Directory) VerifyCode(ctx context.Context, recipient, code string) (bool, error) {
	stored, err := d.rdb.Get(ctx, codeKeyPrefix+recipient).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, stderrors.NewExternalServiceError("redis", err)
	}
	if stored != code {
		return false, nil
	}
	if err := d.rdb.Del(ctx, codeKeyPrefix+recipient).Err(); err != nil {
		return false, stderrors.NewExternalServiceError("redis", err)
	}
	return true, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
