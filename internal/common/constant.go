package common

// AppName is the user-facing product name, also used for the data directory.
const AppName = "keynest"

// VaultSchemaVersion is the current version tag of the vault document.
const VaultSchemaVersion = 1
