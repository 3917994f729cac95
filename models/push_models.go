package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// TokenEntry 单个推送令牌，按设备槽位去重
type TokenEntry struct {
	DeviceSlot string    `json:"deviceId" firestore:"deviceId"`   // logical device/installation id
	Token      string    `json:"fcmToken" firestore:"fcmToken"`   // opaque delivery token
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"` // first insertion for the slot
	UpdatedAt  time.Time `json:"updatedAt" firestore:"updatedAt"` // last insertion or replacement

	// Raw is the element exactly as the store returned it. Atomic array
	// removals must match stored values, not re-encoded ones.
	Raw interface{} `json:"-" firestore:"-"`
}

// UserTokenRecord 一个用户身份下的所有推送令牌
type UserTokenRecord struct {
	Identity string       `json:"identity" firestore:"-"`
	Tokens   []TokenEntry `json:"fcmTokens" firestore:"fcmTokens"`

	// Legacy is set when the stored document used bare token strings or
	// non-canonical entries. The next write rewrites it in canonical shape.
	Legacy bool `json:"-" firestore:"-"`
}

// SlotIndex returns the index of the entry for slot, or -1.
func (r *UserTokenRecord) SlotIndex(slot string) int {
	if r == nil {
		return -1
	}
	for i, entry := range r.Tokens {
		if entry.DeviceSlot == slot {
			return i
		}
	}
	return -1
}

// TokenValues returns the token strings in stored order.
func (r *UserTokenRecord) TokenValues() []string {
	if r == nil {
		return []string{}
	}
	values := make([]string, 0, len(r.Tokens))
	for _, entry := range r.Tokens {
		values = append(values, entry.Token)
	}
	return values
}

// HasDuplicateSlots reports whether two entries share a device slot. This
// only happens when concurrent writers raced on the same identity.
func (r *UserTokenRecord) HasDuplicateSlots() bool {
	if r == nil {
		return false
	}
	seen := make(map[string]struct{}, len(r.Tokens))
	for _, entry := range r.Tokens {
		if _, ok := seen[entry.DeviceSlot]; ok {
			return true
		}
		seen[entry.DeviceSlot] = struct{}{}
	}
	return false
}

// Compact collapses entries sharing a slot into one. The surviving entry keeps
// the position of the first occurrence, the token of the most recent update
// and the earliest CreatedAt.
func (r *UserTokenRecord) Compact() {
	if r == nil || !r.HasDuplicateSlots() {
		return
	}
	index := make(map[string]int, len(r.Tokens))
	compacted := make([]TokenEntry, 0, len(r.Tokens))
	for _, entry := range r.Tokens {
		i, ok := index[entry.DeviceSlot]
		if !ok {
			index[entry.DeviceSlot] = len(compacted)
			compacted = append(compacted, entry)
			continue
		}
		kept := compacted[i]
		if entry.UpdatedAt.After(kept.UpdatedAt) {
			kept.Token = entry.Token
			kept.UpdatedAt = entry.UpdatedAt
			kept.Raw = nil
		}
		if !entry.CreatedAt.IsZero() && (kept.CreatedAt.IsZero() || entry.CreatedAt.Before(kept.CreatedAt)) {
			kept.CreatedAt = entry.CreatedAt
		}
		compacted[i] = kept
	}
	r.Tokens = compacted
}

// UnmarshalJSON accepts both the canonical entry objects and the bare-string
// token arrays written by older clients.
func (r *UserTokenRecord) UnmarshalJSON(data []byte) error {
	var doc struct {
		Identity string            `json:"identity"`
		Tokens   []json.RawMessage `json:"fcmTokens"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	r.Identity = doc.Identity
	r.Tokens = make([]TokenEntry, 0, len(doc.Tokens))
	r.Legacy = false
	for _, raw := range doc.Tokens {
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		entry, canonical, ok := EntryFromValue(value)
		if !ok {
			r.Legacy = true
			continue
		}
		if !canonical {
			r.Legacy = true
		}
		r.Tokens = append(r.Tokens, entry)
	}
	return nil
}

// DecodeRecord builds a record from a generic document, as returned by
// document stores that do not decode into structs.
func DecodeRecord(identity string, data map[string]interface{}) (*UserTokenRecord, error) {
	record := &UserTokenRecord{Identity: identity, Tokens: []TokenEntry{}}
	rawTokens, exists := data[FieldTokens]
	if !exists || rawTokens == nil {
		return record, nil
	}
	items, ok := rawTokens.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %s has unexpected type %T", FieldTokens, rawTokens)
	}
	for _, item := range items {
		entry, canonical, ok := EntryFromValue(item)
		if !ok {
			record.Legacy = true
			continue
		}
		if !canonical {
			record.Legacy = true
		}
		record.Tokens = append(record.Tokens, entry)
	}
	return record, nil
}

// EntryFromValue converts one stored array element into an entry. canonical is
// false for bare strings and for objects missing canonical fields; ok is false
// for elements that carry no token at all.
func EntryFromValue(value interface{}) (entry TokenEntry, canonical bool, ok bool) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return TokenEntry{}, false, false
		}
		return TokenEntry{DeviceSlot: DefaultDeviceSlot, Token: v, Raw: v}, false, true
	case map[string]interface{}:
		entry.Raw = v
		canonical = true
		if token, isString := v["fcmToken"].(string); isString && token != "" {
			entry.Token = token
		} else if token, isString := v["token"].(string); isString && token != "" {
			entry.Token = token
			canonical = false
		} else {
			return TokenEntry{}, false, false
		}
		if slot, isString := v["deviceId"].(string); isString && slot != "" {
			entry.DeviceSlot = slot
		} else {
			entry.DeviceSlot = DefaultDeviceSlot
			canonical = false
		}
		var hasCreated, hasUpdated bool
		entry.CreatedAt, hasCreated = timeValue(v["createdAt"])
		entry.UpdatedAt, hasUpdated = timeValue(v["updatedAt"])
		if !hasCreated || !hasUpdated {
			canonical = false
		}
		return entry, canonical, true
	default:
		return TokenEntry{}, false, false
	}
}

func timeValue(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// EntryData is the canonical document form of an entry.
func EntryData(entry TokenEntry) map[string]interface{} {
	return map[string]interface{}{
		"deviceId":  entry.DeviceSlot,
		"fcmToken":  entry.Token,
		"createdAt": entry.CreatedAt,
		"updatedAt": entry.UpdatedAt,
	}
}

// RecordData is the canonical document form of a record.
func RecordData(record *UserTokenRecord) map[string]interface{} {
	items := make([]interface{}, 0, len(record.Tokens))
	for _, entry := range record.Tokens {
		items = append(items, EntryData(entry))
	}
	return map[string]interface{}{FieldTokens: items}
}

// SameEntry compares the stored identity of two entries.
func SameEntry(a, b TokenEntry) bool {
	return a.DeviceSlot == b.DeviceSlot &&
		a.Token == b.Token &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

// ErrRecordNotFound is returned by token stores when no record exists for an identity.
var ErrRecordNotFound = errors.New("token record not found")

// Notification 推送通知内容
type Notification struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

// DeliveryErrorKind classifies a per-token delivery failure.
type DeliveryErrorKind string

const (
	DeliveryErrorNone          DeliveryErrorKind = "none"
	DeliveryErrorInvalidToken  DeliveryErrorKind = "invalidToken"
	DeliveryErrorNotRegistered DeliveryErrorKind = "notRegistered"
	DeliveryErrorOther         DeliveryErrorKind = "other"
)

// Permanent reports whether the token behind this failure will never be deliverable again.
func (k DeliveryErrorKind) Permanent() bool {
	return k == DeliveryErrorInvalidToken || k == DeliveryErrorNotRegistered
}

// DeliveryOutcome 单个令牌的投递结果
type DeliveryOutcome struct {
	Success   bool              `json:"success"`
	ErrorKind DeliveryErrorKind `json:"errorKind"`
	Message   string            `json:"message,omitempty"`
	MessageID string            `json:"messageId,omitempty"`
}

// PlatformHints 每个平台固定的推送参数，对所有事件相同
type PlatformHints struct {
	AndroidChannelID string
	Priority         string // "high" or "normal"
	Sound            string
	Badge            int
	ClickAction      string // absolute https link prefix, the device id is appended when present
	WebIcon          string
	WebBadge         string
}

// DefaultPlatformHints 默认平台参数
func DefaultPlatformHints() PlatformHints {
	return PlatformHints{
		AndroidChannelID: "high_importance_channel",
		Priority:         "high",
		Sound:            "default",
		Badge:            1,
		ClickAction:      "",
		WebIcon:          "/icon-192x192.png",
		WebBadge:         "/icon-64x64.png",
	}
}

// HighPriority reports whether messages are sent with high priority.
func (h PlatformHints) HighPriority() bool {
	return h.Priority != "normal"
}

// Validate 检查启动配置，点击链接必须是绝对 https 地址
func (h PlatformHints) Validate() error {
	if h.ClickAction != "" && !IsHTTPSURL(h.ClickAction) {
		return fmt.Errorf("push click action %q must be an absolute https URL", h.ClickAction)
	}
	return nil
}

// Link returns the web click-through link for the given data payload.
// Links that are not absolute https URLs are dropped.
func (h PlatformHints) Link(data map[string]string) string {
	if h.ClickAction == "" {
		return ""
	}
	link := h.ClickAction
	if deviceID := data["deviceId"]; deviceID != "" {
		link += url.PathEscape(deviceID)
	}
	if !IsHTTPSURL(link) {
		return ""
	}
	return link
}

// IsHTTPSURL reports whether s is an absolute https URL with a host.
func IsHTTPSURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Scheme == "https" && u.Host != ""
}
