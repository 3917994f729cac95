package push_service

import (
	"context"
	"errors"
	"fleet-push-service/models"
	"fleet-push-service/tool"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RegistrationResult 注册结果
type RegistrationResult struct {
	Outcome    models.RegistrationOutcome `json:"outcome"`
	Identity   string                     `json:"identity"`
	DeviceSlot string                     `json:"deviceId"`
}

// Selector picks the entries to unregister. Exactly one field must be set.
type Selector struct {
	DeviceSlot string
	Token      string
}

// UnregisterResult 注销结果
type UnregisterResult struct {
	Removed bool `json:"removed"`
	Count   int  `json:"count"`
}

// Registry owns every mutation of user token records.
//
// Adding a new slot and removing entries use the store's atomic array
// primitives. Replacing the token of an existing slot, upgrading a legacy
// record and compacting duplicate slots rewrite the whole record; concurrent
// writers to the same identity are last-writer-wins for those paths. Stores
// that keep one row per slot resolve two concurrent adds of the same new slot
// the same way: the later token stays.
type Registry struct {
	store   TokenDocumentStore
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewRegistry 创建令牌注册表
func NewRegistry(store TokenDocumentStore, timeout time.Duration, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		store:   store,
		timeout: timeout,
		now:     time.Now,
		log:     log.Named("registry"),
	}
}

func (r *Registry) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// load returns nil without error when the identity has no record.
func (r *Registry) load(ctx context.Context, identity string) (*models.UserTokenRecord, error) {
	record, err := r.store.Get(ctx, identity)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, registryUnavailable("read", err)
	}
	if record == nil {
		return nil, nil
	}
	record.Identity = identity
	return record, nil
}

// Register adds or replaces the token of one device slot.
func (r *Registry) Register(ctx context.Context, identity, deviceSlot, token string) (*RegistrationResult, error) {
	identity = NormalizeIdentity(identity)
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}
	if err := ValidateToken(token); err != nil {
		return nil, err
	}
	slot := NormalizeSlot(deviceSlot)
	result := &RegistrationResult{Identity: identity, DeviceSlot: slot}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	record, err := r.load(ctx, identity)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	entry := models.TokenEntry{DeviceSlot: slot, Token: token, CreatedAt: now, UpdatedAt: now}

	if record == nil {
		if err := r.store.AddEntries(ctx, identity, entry); err != nil {
			return nil, registryUnavailable("write", err)
		}
		result.Outcome = models.RegistrationInserted
		r.log.Info("token registered", zap.String("identity", tool.MaskIdentity(identity)),
			zap.String("slot", slot), zap.String("token", tool.MaskToken(token)))
		return result, nil
	}

	rewrite := record.Legacy || record.HasDuplicateSlots()
	record.Compact()
	idx := record.SlotIndex(slot)

	if idx >= 0 && record.Tokens[idx].Token == token {
		result.Outcome = models.RegistrationUnchanged
		return result, nil
	}

	if idx < 0 && !rewrite {
		if err := r.store.AddEntries(ctx, identity, entry); err != nil {
			return nil, registryUnavailable("write", err)
		}
		result.Outcome = models.RegistrationInserted
		r.log.Info("token registered", zap.String("identity", tool.MaskIdentity(identity)),
			zap.String("slot", slot), zap.String("token", tool.MaskToken(token)))
		return result, nil
	}

	if idx >= 0 {
		if created := record.Tokens[idx].CreatedAt; !created.IsZero() {
			entry.CreatedAt = created
		}
		record.Tokens[idx] = entry
		result.Outcome = models.RegistrationReplaced
	} else {
		record.Tokens = append(record.Tokens, entry)
		result.Outcome = models.RegistrationInserted
	}
	canonicalize(record, now)
	if err := r.store.Set(ctx, record); err != nil {
		return nil, registryUnavailable("write", err)
	}
	r.log.Info("token record rewritten", zap.String("identity", tool.MaskIdentity(identity)),
		zap.String("slot", slot), zap.String("outcome", string(result.Outcome)))
	return result, nil
}

// Unregister removes the entries matching the selector.
func (r *Registry) Unregister(ctx context.Context, identity string, selector Selector) (*UnregisterResult, error) {
	identity = NormalizeIdentity(identity)
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}
	// 空槽位表示未指定，这里只去掉首尾空白
	selector.DeviceSlot = strings.TrimSpace(selector.DeviceSlot)
	hasSlot, hasToken := selector.DeviceSlot != "", selector.Token != ""
	if hasSlot == hasToken {
		return nil, validationError("exactly one of deviceId or token must be given")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	record, err := r.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &UnregisterResult{}, nil
	}

	count, err := r.removeMatching(ctx, record, func(entry models.TokenEntry) bool {
		if hasSlot {
			return entry.DeviceSlot == selector.DeviceSlot
		}
		return entry.Token == selector.Token
	})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		r.log.Info("token unregistered", zap.String("identity", tool.MaskIdentity(identity)), zap.Int("count", count))
	}
	return &UnregisterResult{Removed: count > 0, Count: count}, nil
}

// Lookup returns the tokens of an identity in insertion order, or at most the
// one registered for deviceSlot when it is given.
func (r *Registry) Lookup(ctx context.Context, identity, deviceSlot string) ([]string, error) {
	identity = NormalizeIdentity(identity)
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	record, err := r.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return []string{}, nil
	}
	record.Compact()
	if deviceSlot = strings.TrimSpace(deviceSlot); deviceSlot == "" {
		return record.TokenValues(), nil
	}
	if idx := record.SlotIndex(deviceSlot); idx >= 0 {
		return []string{record.Tokens[idx].Token}, nil
	}
	return []string{}, nil
}

// Prune removes every entry whose token is in the set in one update.
func (r *Registry) Prune(ctx context.Context, identity string, tokens map[string]struct{}) error {
	if len(tokens) == 0 {
		return nil
	}
	identity = NormalizeIdentity(identity)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	record, err := r.load(ctx, identity)
	if err != nil || record == nil {
		return err
	}
	count, err := r.removeMatching(ctx, record, func(entry models.TokenEntry) bool {
		_, ok := tokens[entry.Token]
		return ok
	})
	if err != nil {
		return err
	}
	if count > 0 {
		r.log.Info("invalid tokens pruned", zap.String("identity", tool.MaskIdentity(identity)), zap.Int("count", count))
	}
	return nil
}

// RemoveAll deletes the record of an identity, returning how many tokens it held.
func (r *Registry) RemoveAll(ctx context.Context, identity string) (int, error) {
	identity = NormalizeIdentity(identity)
	if err := ValidateIdentity(identity); err != nil {
		return 0, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	record, err := r.load(ctx, identity)
	if err != nil || record == nil {
		return 0, err
	}
	if err := r.store.Delete(ctx, identity); err != nil {
		return 0, registryUnavailable("delete", err)
	}
	r.log.Info("all tokens removed", zap.String("identity", tool.MaskIdentity(identity)), zap.Int("count", len(record.Tokens)))
	return len(record.Tokens), nil
}

// removeMatching drops the matching entries and deletes the record once it is
// empty. Canonical records go through atomic array removal; legacy records are
// rewritten in canonical shape.
func (r *Registry) removeMatching(ctx context.Context, record *models.UserTokenRecord, match func(models.TokenEntry) bool) (int, error) {
	var matched []models.TokenEntry
	remaining := make([]models.TokenEntry, 0, len(record.Tokens))
	for _, entry := range record.Tokens {
		if match(entry) {
			matched = append(matched, entry)
		} else {
			remaining = append(remaining, entry)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	if record.Legacy {
		if len(remaining) == 0 {
			if err := r.store.Delete(ctx, record.Identity); err != nil {
				return 0, registryUnavailable("delete", err)
			}
			return len(matched), nil
		}
		rewritten := &models.UserTokenRecord{Identity: record.Identity, Tokens: remaining}
		rewritten.Compact()
		canonicalize(rewritten, r.now().UTC())
		if err := r.store.Set(ctx, rewritten); err != nil {
			return 0, registryUnavailable("write", err)
		}
		return len(matched), nil
	}

	if err := r.store.RemoveEntries(ctx, record.Identity, matched...); err != nil {
		return 0, registryUnavailable("write", err)
	}
	if _, err := r.store.DeleteIfEmpty(ctx, record.Identity); err != nil {
		return 0, registryUnavailable("delete", err)
	}
	return len(matched), nil
}

// canonicalize fills the timestamps legacy entries lack and clears the raw
// store values, which no longer describe the rewritten entries.
func canonicalize(record *models.UserTokenRecord, now time.Time) {
	for i := range record.Tokens {
		record.Tokens[i].Raw = nil
		if record.Tokens[i].CreatedAt.IsZero() {
			record.Tokens[i].CreatedAt = now
		}
		if record.Tokens[i].UpdatedAt.IsZero() {
			record.Tokens[i].UpdatedAt = now
		}
	}
	record.Legacy = false
}
