// Package cli provides the gophcal command-line client.
//
// Commands are built with cobra on top of an App, which loads configuration,
// opens the local store and unlocks the device key on demand:
//
//	gophcal init
//	gophcal event add --name standup --start "2024-03-04 09:00"
//	gophcal event list
//	gophcal push
//	gophcal sync --watch
//
// The passphrase is read from GOPHCAL_PASSPHRASE when set, otherwise from the
// terminal without echo.
package cli
