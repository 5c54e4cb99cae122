package common

// KeySize is the length in bytes of every symmetric key handled by the
// device: the data key and the passphrase-derived master key.
const KeySize = 32

// SaltSize is the length of the random argon2 salt stored per device.
const SaltSize = 32
