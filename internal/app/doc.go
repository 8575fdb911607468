// Package app wires application dependencies for the CLI.
//
// It loads Config, locks the home directory, opens the vault and the message
// database, and builds the stores, engines and services exposed via Wire.
package app
