package device

// Features is the feature set a device reports. Field names follow the Trezor
// Connect wire format so payloads from a Connect helper decode unchanged.
type Features struct {
	Vendor               string   `json:"vendor"`
	MajorVersion         uint32   `json:"major_version"`
	MinorVersion         uint32   `json:"minor_version"`
	PatchVersion         uint32   `json:"patch_version"`
	BootloaderMode       *bool    `json:"bootloader_mode,omitempty"`
	DeviceID             string   `json:"device_id"`
	PinProtection        bool     `json:"pin_protection"`
	PassphraseProtection bool     `json:"passphrase_protection"`
	Language             string   `json:"language,omitempty"`
	Label                string   `json:"label"`
	Initialized          bool     `json:"initialized"`
	Revision             string   `json:"revision,omitempty"`
	Unlocked             bool     `json:"unlocked"`
	FirmwarePresent      *bool    `json:"firmware_present,omitempty"`
	BackupAvailability   string   `json:"backup_availability,omitempty"`
	Flags                uint32   `json:"flags"`
	Model                string   `json:"model"`
	InternalModel        string   `json:"internal_model,omitempty"`
	FwVendor             string   `json:"fw_vendor,omitempty"`
	UnfinishedBackup     bool     `json:"unfinished_backup"`
	NoBackup             bool     `json:"no_backup"`
	RecoveryStatus       string   `json:"recovery_status,omitempty"`
	Capabilities         []string `json:"capabilities,omitempty"`
	BackupType           string   `json:"backup_type,omitempty"`
	SessionID            string   `json:"session_id,omitempty"`
	SafetyChecks         string   `json:"safety_checks,omitempty"`
	AutoLockDelayMs      uint32   `json:"auto_lock_delay_ms,omitempty"`
	Busy                 bool     `json:"busy"`
	UnitBtcOnly          bool     `json:"unit_btconly"`

	// Status is a free-form state line for connectors that cannot report the full set.
	Status string `json:"status,omitempty"`
}

// PublicKey is an extended public key derived on the device.
type PublicKey struct {
	Path           []uint32 `json:"path"`
	SerializedPath string   `json:"serializedPath"`
	ChildNum       uint32   `json:"childNum"`
	Xpub           string   `json:"xpub"`
	XpubSegwit     string   `json:"xpubSegwit,omitempty"`
	ChainCode      string   `json:"chainCode"`
	PublicKey      string   `json:"publicKey"`
	Fingerprint    uint32   `json:"fingerprint"`
	Depth          uint32   `json:"depth"`
	Descriptor     string   `json:"descriptor,omitempty"`
}

// Address is an address derived on the device.
type Address struct {
	Path           []uint32 `json:"path"`
	SerializedPath string   `json:"serializedPath"`
	Address        string   `json:"address"`
}
