// Package system holds process level helpers shared by the binaries.
package system
