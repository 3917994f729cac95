package models

const (
	// DefaultDeviceSlot is used when a client registers without a device id.
	DefaultDeviceSlot = "default"

	// CollectionUserTokens is the document collection holding one record per identity.
	CollectionUserTokens = "token-usuarios"

	// FieldTokens is the document field holding the token entries.
	FieldTokens = "fcmTokens"
)

// RegistrationOutcome 注册结果类型
type RegistrationOutcome string

const (
	RegistrationInserted  RegistrationOutcome = "inserted"
	RegistrationReplaced  RegistrationOutcome = "replaced"
	RegistrationUnchanged RegistrationOutcome = "unchanged"
)
