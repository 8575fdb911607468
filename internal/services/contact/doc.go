// Package contact manages contacts: invitations, their local keys and
// encrypted names.
package contact
